package anyworld

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// TextRequest describes a text-to-3D generation.
type TextRequest struct {
	Prompt       string
	RefinePrompt bool // let the server rewrite the prompt before generating
	// Consent flags; both default to private.
	CanBePublic           bool
	CanUseForImprovements bool
}

// ImageRequest describes an image-to-3D generation.
type ImageRequest struct {
	FilePath              string // the source image
	ModelName             string
	CanBePublic           bool
	CanUseForImprovements bool
}

// GenerateFromText enqueues generation of a 3D model from a text prompt.
func (c *Client) GenerateFromText(ctx context.Context, req TextRequest) (*Receipt, error) {
	if req.Prompt == "" {
		return nil, fmt.Errorf("anyworld: prompt is required")
	}

	form := url.Values{}
	form.Set("key", c.apiKey)
	form.Set("text_prompt", req.Prompt)
	form.Set("refine_prompt", boolField(req.RefinePrompt))
	form.Set("can_be_public", boolField(req.CanBePublic))
	form.Set("can_use_for_internal_improvements", boolField(req.CanUseForImprovements))
	form.Set("platform", "go")

	var receipt Receipt
	if err := c.postForm(ctx, c.apiURL+"/text-to-3d", c.baseParams(), form, &receipt); err != nil {
		return nil, err
	}
	if receipt.ModelID == "" {
		return nil, &TransportError{Err: fmt.Errorf("text-to-3d response carried no model ID")}
	}

	c.logger.Info("generation submitted", "model_id", receipt.ModelID)
	return &receipt, nil
}

// GenerateFromImage enqueues generation of a 3D model from a source image.
func (c *Client) GenerateFromImage(ctx context.Context, req ImageRequest) (*Receipt, error) {
	if req.FilePath == "" {
		return nil, fmt.Errorf("anyworld: image file path is required")
	}
	if req.ModelName == "" {
		return nil, fmt.Errorf("anyworld: model name is required")
	}

	files, err := collectFiles(req.FilePath)
	if err != nil {
		return nil, err
	}

	fields := map[string]string{
		"key":                               c.apiKey,
		"model_name":                        req.ModelName,
		"can_be_public":                     boolField(req.CanBePublic),
		"can_use_for_internal_improvements": boolField(req.CanUseForImprovements),
		"platform":                          "go",
	}

	var receipt Receipt
	if err := c.postMultipart(ctx, c.apiURL+"/image-to-3d", c.baseParams(), fields, files, &receipt); err != nil {
		return nil, err
	}
	if receipt.ModelID == "" {
		return nil, &TransportError{Err: fmt.Errorf("image-to-3d response carried no model ID")}
	}

	c.logger.Info("generation submitted", "model_id", receipt.ModelID, "name", req.ModelName)
	return &receipt, nil
}

// GetGeneratedModel polls until the generated model is ready and returns it.
func (c *Client) GetGeneratedModel(ctx context.Context, modelID string, cfg PollConfig) (*Model, error) {
	if cfg.Done == nil {
		cfg.Done = GenerateDone()
	}
	return NewPoller(c.modelStatus(c.generatedPollingURL), cfg, c.logger).Wait(ctx, modelID)
}

// GenerateAnimatedFromText generates a model from a text prompt, waits for
// it, then runs the generated mesh through the animate pipeline and waits
// for that too. One call, two remote jobs.
func (c *Client) GenerateAnimatedFromText(ctx context.Context, req TextRequest, cfg PollConfig) (*Model, error) {
	receipt, err := c.GenerateFromText(ctx, req)
	if err != nil {
		return nil, err
	}
	generated, err := c.GetGeneratedModel(ctx, receipt.ModelID, cfg)
	if err != nil {
		return nil, err
	}
	return c.animateGenerated(ctx, generated, cfg)
}

// GenerateAnimatedFromImage is GenerateAnimatedFromText for a source image.
func (c *Client) GenerateAnimatedFromImage(ctx context.Context, req ImageRequest, cfg PollConfig) (*Model, error) {
	receipt, err := c.GenerateFromImage(ctx, req)
	if err != nil {
		return nil, err
	}
	generated, err := c.GetGeneratedModel(ctx, receipt.ModelID, cfg)
	if err != nil {
		return nil, err
	}
	return c.animateGenerated(ctx, generated, cfg)
}

// AnimateGenerated downloads a generated model's GLB mesh into a scratch dir
// and submits it to the animate pipeline, returning the new receipt.
func (c *Client) AnimateGenerated(ctx context.Context, generated *Model) (*Receipt, error) {
	meshURL := generated.Model.MeshURL("glb")
	if meshURL == "" {
		return nil, fmt.Errorf("generated model %s has no glb mesh to animate", generated.ID)
	}

	workDir, err := createWorkDir()
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(workDir)

	meshPath := filepath.Join(workDir, "model.glb")
	if err := c.DownloadFile(ctx, meshURL, meshPath); err != nil {
		return nil, err
	}

	return c.Animate(ctx, AnimateRequest{
		FilesDir:   workDir,
		ModelName:  generated.Name,
		Symmetric:  true,
		AutoRotate: true,
	})
}

// animateGenerated submits a generated model to the animate pipeline and
// waits for it.
func (c *Client) animateGenerated(ctx context.Context, generated *Model, cfg PollConfig) (*Model, error) {
	receipt, err := c.AnimateGenerated(ctx, generated)
	if err != nil {
		return nil, err
	}

	// The animate pipeline decides completion here, not the generate one.
	cfg.Done = nil
	return c.GetAnimatedModel(ctx, receipt.ModelID, false, cfg)
}
