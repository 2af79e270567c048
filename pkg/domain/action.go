package domain

// ActionKind identifies the variant of a parsed build action.
type ActionKind string

// Standard Action Kinds
const (
	KindCreateFile   ActionKind = "create_file"
	KindCreateFolder ActionKind = "create_folder"
	KindEditFile     ActionKind = "edit_file"
	KindDeleteFile   ActionKind = "delete_file"
	KindRunScript    ActionKind = "run_script"
)

// Action is a single intent extracted from model output.
// The set of variants is closed: CreateFile, CreateFolder, EditFile, DeleteFile and RunScript.
type Action interface {
	Kind() ActionKind
	// Label returns the explicit title carried by the markup, if any.
	Label() string
	action()
}

// CreateFile writes Content at Path, creating intermediate folders.
type CreateFile struct {
	Path    string
	Content string
	Title   string
}

// CreateFolder ensures every segment of Path exists as a folder.
type CreateFolder struct {
	Path  string
	Title string
}

// EditFile overwrites the content of the file at Path.
type EditFile struct {
	Path    string
	Content string
	Title   string
}

// DeleteFile removes the node at Path.
type DeleteFile struct {
	Path  string
	Title string
}

// RunScript asks the sandbox to run Command. It has no effect on the file tree.
type RunScript struct {
	Command string
	Title   string
}

func (CreateFile) Kind() ActionKind   { return KindCreateFile }
func (CreateFolder) Kind() ActionKind { return KindCreateFolder }
func (EditFile) Kind() ActionKind     { return KindEditFile }
func (DeleteFile) Kind() ActionKind   { return KindDeleteFile }
func (RunScript) Kind() ActionKind    { return KindRunScript }

func (a CreateFile) Label() string   { return a.Title }
func (a CreateFolder) Label() string { return a.Title }
func (a EditFile) Label() string     { return a.Title }
func (a DeleteFile) Label() string   { return a.Title }
func (a RunScript) Label() string    { return a.Title }

func (CreateFile) action()   {}
func (CreateFolder) action() {}
func (EditFile) action()     {}
func (DeleteFile) action()   {}
func (RunScript) action()    {}

// ActionPath returns the target path of a file-system action, or "" for RunScript.
func ActionPath(a Action) string {
	switch v := a.(type) {
	case CreateFile:
		return v.Path
	case CreateFolder:
		return v.Path
	case EditFile:
		return v.Path
	case DeleteFile:
		return v.Path
	case RunScript:
		return ""
	}
	return ""
}

// ActionPayload returns the file content or shell command carried by the action.
func ActionPayload(a Action) string {
	switch v := a.(type) {
	case CreateFile:
		return v.Content
	case EditFile:
		return v.Content
	case RunScript:
		return v.Command
	case CreateFolder, DeleteFile:
		return ""
	}
	return ""
}
