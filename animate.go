package anyworld

import (
	"context"
	"encoding/json"
	"fmt"
)

// AnimateRequest describes a model upload for the animate pipeline.
type AnimateRequest struct {
	// FilesDir is a directory of asset files (mesh, textures, ...) or a
	// single asset file.
	FilesDir  string
	ModelName string
	// ModelType is the kind of model, e.g. "cat". Leave empty to let the
	// server classify it automatically.
	ModelType  string
	Symmetric  bool // model geometry is left/right symmetric
	AutoRotate bool // let the server fix the model's orientation
}

// Animate uploads the model files and enqueues them for animation. The
// returned receipt carries the model ID to poll with.
func (c *Client) Animate(ctx context.Context, req AnimateRequest) (*Receipt, error) {
	if req.FilesDir == "" {
		return nil, fmt.Errorf("anyworld: files dir is required")
	}
	if req.ModelName == "" {
		return nil, fmt.Errorf("anyworld: model name is required")
	}

	files, err := collectFiles(req.FilesDir)
	if err != nil {
		return nil, err
	}

	fields := map[string]string{
		"key":           c.apiKey,
		"model_name":    req.ModelName,
		"model_type":    req.ModelType,
		"symmetry":      boolField(req.Symmetric),
		"auto_rotate":   boolField(req.AutoRotate),
		"auto_classify": boolField(req.ModelType == ""),
		"platform":      "go",
	}

	var receipt Receipt
	if err := c.postMultipart(ctx, c.apiURL+"/animate", c.baseParams(), fields, files, &receipt); err != nil {
		return nil, err
	}
	if receipt.ModelID == "" {
		return nil, &TransportError{Err: fmt.Errorf("animate response carried no model ID")}
	}

	c.logger.Info("animation submitted", "model_id", receipt.ModelID, "name", req.ModelName)
	return &receipt, nil
}

// GetModel fetches the current state of a model in the animate pipeline.
// This is a single check; use GetAnimatedModel to wait for completion.
func (c *Client) GetModel(ctx context.Context, modelID string) (*Model, error) {
	return c.modelStatus(c.pollingURL)(ctx, modelID)
}

// GetAnimatedModel polls until the animated model is ready and returns it.
// With extraFormats set it waits until the extra output formats (.gltf,
// .dae) are converted too, not just the basic ones (.glb, .fbx).
func (c *Client) GetAnimatedModel(ctx context.Context, modelID string, extraFormats bool, cfg PollConfig) (*Model, error) {
	if cfg.Done == nil {
		cfg.Done = AnimateDone(extraFormats)
	}
	return NewPoller(c.modelStatus(c.pollingURL), cfg, c.logger).Wait(ctx, modelID)
}

// IsAnimationDone performs a single status check and reports whether the
// animation has finished.
func (c *Client) IsAnimationDone(ctx context.Context, modelID string, extraFormats bool) (bool, error) {
	model, err := c.GetModel(ctx, modelID)
	if err != nil {
		return false, err
	}
	return AnimateDone(extraFormats)(model), nil
}

// AnimateStatus returns the status-check capability for the animate
// pipeline, for callers that drive a Poller themselves (e.g. to wrap it
// with a retry policy).
func (c *Client) AnimateStatus() StatusFunc {
	return c.modelStatus(c.pollingURL)
}

// GenerateStatus returns the status-check capability for the generate
// pipeline.
func (c *Client) GenerateStatus() StatusFunc {
	return c.modelStatus(c.generatedPollingURL)
}

// modelStatus builds the status-check capability for a polling endpoint.
func (c *Client) modelStatus(pollURL string) StatusFunc {
	return func(ctx context.Context, modelID string) (*Model, error) {
		if modelID == "" {
			return nil, fmt.Errorf("anyworld: model ID is required")
		}
		params := c.baseParams()
		params.Set("key", c.apiKey)
		params.Set("id", modelID)
		params.Set("stage", "done")

		raw, err := c.do(ctx, "GET", pollURL, params, nil, "")
		if err != nil {
			return nil, err
		}
		raw = unwrapList(raw)

		var model Model
		if err := json.Unmarshal(raw, &model); err != nil {
			return nil, &TransportError{Err: fmt.Errorf("decoding model status: %w", err)}
		}
		model.Raw = raw
		return &model, nil
	}
}

func boolField(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
