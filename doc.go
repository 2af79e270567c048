/*
Package thunder turns a natural-language prompt into a runnable web project.

A model answers in an XML-like action markup. Builder parses that markup into
numbered build steps, folds the pending steps into an in-memory file tree and
hands a projection of the tree to a sandbox, one session at a time.

# Pipeline

	prompt -> template -> model reply -> parser -> steps -> reconcile -> tree -> mount

Every stage but the model call and the mount is a pure function and lives in its
own package: pkg/parser, pkg/steps, pkg/filetree, pkg/mount and pkg/reconcile.
Builder wires them to a session store, a template library and a model.

# Usage

	b, err := thunder.New(
		thunder.WithGenerator(llm.New("")),
		thunder.WithStore(memory.NewStore()),
	)
	if err != nil {
		log.Fatal(err)
	}

	s, err := b.Start(ctx, "a todo app with dark mode")
	if err != nil {
		log.Fatal(err)
	}
	for _, step := range s.Steps {
		fmt.Println(step.ID, step.Title, step.Status)
	}

Follow-up prompts go through Continue, raw model text through Ingest.
*/
package thunder
