package core

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type ApplicationSection struct {
	Name     string `toml:"name"`
	Frames   uint32 `toml:"frames"`
	LogLevel string `toml:"log_level"`
	Backend  string `toml:"backend"`
}

type LayerSection struct {
	NativeMeshShader    bool `toml:"native_mesh_shader"`
	MeshShaderSupported bool `toml:"mesh_shader_supported"`
}

// PayloadSection sizes the intermediate buffers shared by the emulated passes.
type PayloadSection struct {
	MaxMeshletCount     uint32 `toml:"max_meshlet_count"`
	GroupVertexCount    uint32 `toml:"group_vertex_count"`
	GroupPrimitiveCount uint32 `toml:"group_primitive_count"`
	VertexStride        uint32 `toml:"vertex_stride"`
	BatchSize           uint32 `toml:"batch_size"`
	IndexFormat         string `toml:"index_format"`
}

type ShaderSection struct {
	Dir   string `toml:"dir"`
	Watch bool   `toml:"watch"`
}

type Config struct {
	Application ApplicationSection `toml:"application"`
	Layer       LayerSection       `toml:"layer"`
	Payload     PayloadSection     `toml:"payload"`
	Shaders     ShaderSection      `toml:"shaders"`
}

// DefaultConfig matches the meshlet sample: 64 vertices and 126 primitives per group.
func DefaultConfig() *Config {
	return &Config{
		Application: ApplicationSection{
			Name:     "MSFallback",
			Frames:   3,
			LogLevel: "debug",
			Backend:  "recorder",
		},
		Payload: PayloadSection{
			MaxMeshletCount:     100,
			GroupVertexCount:    64,
			GroupPrimitiveCount: 126,
			VertexStride:        32,
			BatchSize:           32,
			IndexFormat:         "uint16",
		},
		Shaders: ShaderSection{
			Dir: "testbed/shaders",
		},
	}
}

// LoadConfig reads a TOML file over the defaults, so a partial file only overrides what it names.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	p := c.Payload
	if p.MaxMeshletCount == 0 || p.GroupVertexCount == 0 || p.GroupPrimitiveCount == 0 || p.VertexStride == 0 || p.BatchSize == 0 {
		return fmt.Errorf("payload sizes must be non-zero: %w", ErrInvalidConfig)
	}
	switch p.IndexFormat {
	case "uint16", "uint32":
	default:
		return fmt.Errorf("index format %q: %w", p.IndexFormat, ErrInvalidConfig)
	}
	switch c.Application.Backend {
	case "recorder", "vulkan":
	default:
		return fmt.Errorf("backend %q: %w", c.Application.Backend, ErrInvalidConfig)
	}
	if _, err := ParseLogLevel(c.Application.LogLevel); err != nil {
		return err
	}
	return nil
}

func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
