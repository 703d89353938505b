package lib

import (
	"context"
)

// WriteFile writes the file at the root relative path, creating the parent
// directories if missing. It returns the cleaned relative path.
//
// Returns [ErrJailEscape] if the path resolves outside the root.
func (c *Client) WriteFile(ctx context.Context, rel string, content []byte) (string, error) {
	clean, err := c.files.Write(ctx, rel, content)
	if err != nil {
		return "", mapError(err)
	}
	return clean, nil
}

// ReadFile reads up to maxBytes of the root relative file (0 uses a 2MiB limit).
//
// Returns [ErrNotFound] if the file is missing, [ErrNotValid] if it's a
// directory or [ErrJailEscape] if the path resolves outside the root.
func (c *Client) ReadFile(ctx context.Context, rel string, maxBytes int64) (*FileContent, error) {
	res, err := c.files.Read(ctx, rel, maxBytes)
	if err != nil {
		return nil, mapError(err)
	}

	return &FileContent{
		Content:   res.Content,
		Size:      res.Size,
		Truncated: res.Truncated,
	}, nil
}

// ListDir lists the root relative directory, directories first.
func (c *Client) ListDir(ctx context.Context, rel string) ([]FileEntry, error) {
	entries, err := c.files.List(ctx, rel)
	if err != nil {
		return nil, mapError(err)
	}

	res := make([]FileEntry, 0, len(entries))
	for _, e := range entries {
		res = append(res, FileEntry{Name: e.Name, Dir: e.Dir, Size: e.Size, ModTime: e.ModTime})
	}
	return res, nil
}
