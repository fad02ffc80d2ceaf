package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Source resolves configuration values by key. Keys use env-var style names
// such as GEMINI_API_KEY regardless of where the value actually lives.
type Source interface {
	// Lookup returns the value for a key, or empty when the source does not
	// carry it.
	Lookup(ctx context.Context, key string) (string, error)

	// Name identifies the source in logs.
	Name() string

	// Available reports whether this source can serve lookups at all.
	Available(ctx context.Context) bool
}

// Chain tries sources in order, returning the first non-empty value.
type Chain struct {
	sources []Source
}

// NewChain builds a chain over the given sources.
func NewChain(sources ...Source) *Chain {
	return &Chain{sources: sources}
}

func (c *Chain) Lookup(ctx context.Context, key string) (string, error) {
	var lastErr error
	for _, src := range c.sources {
		if !src.Available(ctx) {
			continue
		}
		value, err := src.Lookup(ctx, key)
		if err == nil && value != "" {
			return value, nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return "", fmt.Errorf("lookup %s: %w", key, lastErr)
	}
	return "", nil
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) Available(ctx context.Context) bool {
	for _, src := range c.sources {
		if src.Available(ctx) {
			return true
		}
	}
	return false
}

// EnvSource reads values from environment variables.
type EnvSource struct{}

func NewEnvSource() *EnvSource { return &EnvSource{} }

func (e *EnvSource) Lookup(ctx context.Context, key string) (string, error) {
	return os.Getenv(key), nil
}

func (e *EnvSource) Name() string { return "env" }

func (e *EnvSource) Available(ctx context.Context) bool { return true }

// FileSource reads values from one-file-per-key directories, the layout a
// Kubernetes secret volume mounts. GEMINI_API_KEY maps to the file
// gemini-api-key under the configured directory.
type FileSource struct {
	dir string
}

func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

func (f *FileSource) Lookup(ctx context.Context, key string) (string, error) {
	if f.dir == "" {
		return "", fmt.Errorf("no secrets directory configured")
	}

	name := strings.ToLower(strings.ReplaceAll(key, "_", "-"))
	data, err := os.ReadFile(filepath.Join(f.dir, name))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read secret %s: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (f *FileSource) Name() string { return "file" }

func (f *FileSource) Available(ctx context.Context) bool {
	info, err := os.Stat(f.dir)
	return err == nil && info.IsDir()
}

const serviceAccountDir = "/var/run/secrets/kubernetes.io/serviceaccount"

// KubernetesSource serves secrets inside a cluster. Secret volumes arrive as
// mounted files, so lookups go through a FileSource rooted at the mount path.
type KubernetesSource struct {
	files     *FileSource
	namespace string
}

// NewKubernetesSource creates a source rooted at mountPath, defaulting to
// /var/secrets. The pod namespace is detected when not given.
func NewKubernetesSource(mountPath, namespace string) *KubernetesSource {
	if mountPath == "" {
		mountPath = "/var/secrets"
	}
	if namespace == "" {
		namespace = "default"
		if ns, err := os.ReadFile(filepath.Join(serviceAccountDir, "namespace")); err == nil {
			namespace = strings.TrimSpace(string(ns))
		}
	}

	return &KubernetesSource{
		files:     NewFileSource(mountPath),
		namespace: namespace,
	}
}

func (k *KubernetesSource) Lookup(ctx context.Context, key string) (string, error) {
	return k.files.Lookup(ctx, key)
}

func (k *KubernetesSource) Name() string { return "kubernetes" }

// Available requires both a service account token and the secret mount, so
// the source stays inert outside a cluster.
func (k *KubernetesSource) Available(ctx context.Context) bool {
	if _, err := os.Stat(filepath.Join(serviceAccountDir, "token")); err != nil {
		return false
	}
	return k.files.Available(ctx)
}

// Namespace returns the detected pod namespace.
func (k *KubernetesSource) Namespace() string {
	return k.namespace
}
