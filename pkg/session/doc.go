/*
Package session implements session management and persistence orchestration.

It serialises read-modify-write cycles on builder sessions, combining
reference-counted local locks with an optional distributed locker, and
publishes a domain.SessionDiff to observers after every change.
*/
package session
