/*
Package ports defines the driven ports (interfaces) of the Thunder pipeline.

These interfaces decouple the builder from external implementations, allowing
it to work with various session stores, template sources and model providers.

# Key Interfaces

  - SessionStore: Persists and loads session snapshots (memory, file, redis, sqlite).
  - DistributedLocker: Provides distributed locking for concurrent session access.
  - Generator: Calls the language model with a system prompt and a conversation.
  - TemplateLoader: Resolves starter templates by stack name (memory, loam).
*/
package ports
