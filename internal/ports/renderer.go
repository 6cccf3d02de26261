package ports

// Renderer substitutes variables into prompt content. Undefined variables
// must surface as a domain.ErrRender, never be silently dropped.
type Renderer interface {
	Render(content string, variables map[string]any) (string, error)
}
