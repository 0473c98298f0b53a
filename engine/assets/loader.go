package assets

import "github.com/spaghettifunk/meshfallback/engine/renderer/metadata"

// Loader turns a shader file into bytecode. Extensions lists the file
// extensions it handles, dot included.
type Loader interface {
	Extensions() []string
	Load(path string) (*metadata.ShaderBlob, error)
}
