/*
Package domain contains the core domain models of the Thunder build pipeline.

It defines the entities that flow from model output to the sandbox: parsed
Actions, stateful Steps, the hierarchical file Tree and the persisted Session.
This package is kept pure and free of external dependencies like I/O or
persistence, following Hexagonal Architecture principles.

# Key Entities

  - Action: A closed set of build intents (CreateFile, CreateFolder, EditFile, DeleteFile, RunScript).
  - Step: An Action with an id and a lifecycle status (pending → completed | failed).
  - FileNode / Tree: The in-memory project, folders and files addressed by slash paths.
  - Session: The durable snapshot of one pipeline (steps, tree, conversation).
*/
package domain
