package server

import "github.com/ironsheep/annotation-corrector/internal/imaging"

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func kindProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"enum":        []string{"prediction", "label"},
		"description": "Which box list the index refers to",
	}
}

func indexProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": description,
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Queue State
		{
			Name:        "review_status",
			Description: "Report the review position: current index, queue length, image and label paths, box counts and class names.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "review_show",
			Description: "Show every prediction and label of a queued image with class, confidence, accepted/kept state, disagreement flag and pixel rectangle.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"index": indexProperty("Queue index. Defaults to the current image"),
				},
			},
		},

		// Editing
		{
			Name:        "review_toggle",
			Description: "Toggle a prediction between accepted and rejected, or a label between kept and removed, on the current image. Disagreement flags are recomputed.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"kind":  kindProperty(),
					"index": indexProperty("Box index within its list (0-based)"),
				},
				"required": []string{"kind", "index"},
			},
		},
		{
			Name:        "review_resize",
			Description: "Replace the rectangle of a prediction or label on the current image. Coordinates are pixels with (0,0) at the top-left. The class is preserved.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"kind":  kindProperty(),
					"index": indexProperty("Box index within its list (0-based)"),
					"x": map[string]interface{}{
						"type":        "number",
						"description": "Left edge X coordinate",
					},
					"y": map[string]interface{}{
						"type":        "number",
						"description": "Top edge Y coordinate",
					},
					"width": map[string]interface{}{
						"type":        "number",
						"description": "Width in pixels (must be positive)",
					},
					"height": map[string]interface{}{
						"type":        "number",
						"description": "Height in pixels (must be positive)",
					},
				},
				"required": []string{"kind", "index", "x", "y", "width", "height"},
			},
		},

		// Navigation and Output
		{
			Name:        "review_navigate",
			Description: "Move through the queue by delta images. Moves past either end are ignored.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"delta": map[string]interface{}{
						"type":        "integer",
						"description": "Number of images to move, negative to go back",
					},
				},
				"required": []string{"delta"},
			},
		},
		{
			Name:        "review_preview",
			Description: "Return the label lines that would be saved for an image: kept labels followed by accepted predictions.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"index": indexProperty("Queue index. Defaults to the current image"),
				},
			},
		},
		{
			Name:        "review_save",
			Description: "Write the final labels of every queued image to the corrected directory, whatever the current position.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},

		// Visual Inspection
		{
			Name:        "review_render",
			Description: "Render the current image with its boxes as base64-encoded PNG. Kept labels are green, predictions red (amber when they disagree with the labels), the final set blue. Accepted predictions show a tick, removed labels a cross.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"show_predictions": map[string]interface{}{
						"type":        "boolean",
						"description": "Draw predictions. Default true",
						"default":     true,
					},
					"show_labels": map[string]interface{}{
						"type":        "boolean",
						"description": "Draw labels. Default true",
						"default":     true,
					},
					"show_final": map[string]interface{}{
						"type":        "boolean",
						"description": "Draw the set that would be saved. Default false",
						"default":     false,
					},
					"selected_kind":  kindProperty(),
					"selected_index": indexProperty("Box to draw with resize handles"),
					"brightness": map[string]interface{}{
						"type":        "number",
						"description": "Brightness factor, 1.0 unchanged. Default 1.0",
						"default":     1.0,
					},
					"contrast": map[string]interface{}{
						"type":        "number",
						"description": "Contrast factor, 1.0 unchanged. Default 1.0",
						"default":     1.0,
					},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Output scale factor, at most 8. Default 1.0",
						"default":     1.0,
						"maximum":     imaging.MaxScale,
					},
				},
			},
		},
		{
			Name:        "review_crop_box",
			Description: "Crop the area around one box of the current image and return it as base64-encoded PNG for close inspection.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"kind":  kindProperty(),
					"index": indexProperty("Box index within its list (0-based)"),
					"padding": map[string]interface{}{
						"type":        "integer",
						"description": "Pixels of context around the box. Default 10",
						"default":     10,
					},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor (e.g., 2.0 to double size), at most 8. Default 1.0",
						"default":     1.0,
						"maximum":     imaging.MaxScale,
					},
				},
				"required": []string{"kind", "index"},
			},
		},

		// Journal
		{
			Name:        "review_history",
			Description: "List recent label file saves, newest first.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum entries to return. Default 20",
						"default":     20,
					},
				},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
