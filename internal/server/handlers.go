package server

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pkg/errors"

	"github.com/ironsheep/annotation-corrector/internal/geometry"
	"github.com/ironsheep/annotation-corrector/internal/imaging"
	"github.com/ironsheep/annotation-corrector/internal/review"
	"github.com/ironsheep/annotation-corrector/internal/session"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "review_show", "review_toggle").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Queue State
	case "review_status":
		return s.handleReviewStatus()
	case "review_show":
		return s.handleReviewShow(args)

	// Editing
	case "review_toggle":
		return s.handleReviewToggle(args)
	case "review_resize":
		return s.handleReviewResize(args)

	// Navigation and Output
	case "review_navigate":
		return s.handleReviewNavigate(args)
	case "review_preview":
		return s.handleReviewPreview(args)
	case "review_save":
		return s.ctrl.SaveAll(), nil

	// Visual Inspection
	case "review_render":
		return s.handleReviewRender(args)
	case "review_crop_box":
		return s.handleReviewCropBox(args)

	// Journal
	case "review_history":
		return s.handleReviewHistory(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// unmarshalArgs decodes tool arguments; absent arguments decode as zero values.
func unmarshalArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	return json.Unmarshal(args, v)
}

// === Queue State Handlers ===

type statusResult struct {
	Index      int      `json:"index"`
	Total      int      `json:"total"`
	ImagePath  string   `json:"image_path,omitempty"`
	LabelPath  string   `json:"label_path,omitempty"`
	Kept       int      `json:"kept"`
	Accepted   int      `json:"accepted"`
	Flagged    int      `json:"flagged"`
	ClassNames []string `json:"class_names"`
}

func (s *Server) handleReviewStatus() (interface{}, error) {
	result := statusResult{
		Index:      s.ctrl.Index(),
		Total:      s.ctrl.Len(),
		ClassNames: s.ctrl.ClassNames(),
	}
	if result.ClassNames == nil {
		result.ClassNames = []string{}
	}

	if cur, err := s.ctrl.Current(); err == nil {
		result.ImagePath = cur.ImagePath
		result.LabelPath = cur.LabelPath
		result.Kept, result.Accepted = cur.Counts()
		for _, p := range cur.Predictions {
			if p.Disagrees {
				result.Flagged++
			}
		}
	}
	return result, nil
}

type boxView struct {
	Index     int            `json:"index"`
	Line      string         `json:"line"`
	ClassID   int            `json:"class_id"`
	ClassName string         `json:"class_name"`
	Rect      *geometry.Rect `json:"rect,omitempty"`
}

type predictionView struct {
	boxView
	Confidence float64 `json:"confidence"`
	Accepted   bool    `json:"accepted"`
	Disagrees  bool    `json:"disagrees"`
}

type labelView struct {
	boxView
	Kept bool `json:"kept"`
}

type showResult struct {
	Index       int              `json:"index"`
	ImagePath   string           `json:"image_path"`
	LabelPath   string           `json:"label_path"`
	Width       int              `json:"width"`
	Height      int              `json:"height"`
	Predictions []predictionView `json:"predictions"`
	Labels      []labelView      `json:"labels"`
}

type indexArgs struct {
	Index *int `json:"index"`
}

func (s *Server) resolveIndex(index *int) int {
	if index == nil {
		return s.ctrl.Index()
	}
	return *index
}

func (s *Server) handleReviewShow(args json.RawMessage) (interface{}, error) {
	var a indexArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return s.show(s.resolveIndex(a.Index))
}

func (s *Server) show(index int) (*showResult, error) {
	img, err := s.ctrl.Session(index)
	if err != nil {
		return nil, err
	}

	result := &showResult{
		Index:       index,
		ImagePath:   img.ImagePath,
		LabelPath:   img.LabelPath,
		Width:       img.Width,
		Height:      img.Height,
		Predictions: make([]predictionView, 0, len(img.Predictions)),
		Labels:      make([]labelView, 0, len(img.Labels)),
	}
	for i, p := range img.Predictions {
		result.Predictions = append(result.Predictions, predictionView{
			boxView:    s.view(i, p.Box, img),
			Confidence: p.Confidence,
			Accepted:   p.Accepted,
			Disagrees:  p.Disagrees,
		})
	}
	for i, l := range img.Labels {
		result.Labels = append(result.Labels, labelView{
			boxView: s.view(i, l.Box, img),
			Kept:    l.Kept,
		})
	}
	return result, nil
}

func (s *Server) view(i int, b review.Box, img *review.ImageSession) boxView {
	v := boxView{Index: i, Line: b.Line, ClassID: b.ClassID()}
	v.ClassName = s.ctrl.ClassName(v.ClassID)
	if r, err := b.Rect(img.Width, img.Height); err == nil {
		v.Rect = &r
	}
	return v
}

// === Editing Handlers ===

type boxArgs struct {
	Kind  string `json:"kind"`
	Index *int   `json:"index"`
}

func (a boxArgs) validate() (session.Kind, int, error) {
	kind, err := session.ParseKind(a.Kind)
	if err != nil {
		return "", 0, err
	}
	if a.Index == nil {
		return "", 0, errors.New("index is required")
	}
	return kind, *a.Index, nil
}

func (s *Server) handleReviewToggle(args json.RawMessage) (interface{}, error) {
	var a boxArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	kind, i, err := a.validate()
	if err != nil {
		return nil, err
	}
	if err := s.ctrl.Toggle(kind, i); err != nil {
		return nil, err
	}
	return s.show(s.ctrl.Index())
}

type resizeArgs struct {
	boxArgs
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (s *Server) handleReviewResize(args json.RawMessage) (interface{}, error) {
	var a resizeArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	kind, i, err := a.validate()
	if err != nil {
		return nil, err
	}
	rect := geometry.Rect{X: a.X, Y: a.Y, Width: a.Width, Height: a.Height}
	if err := s.ctrl.Resize(kind, i, rect); err != nil {
		return nil, err
	}
	return s.show(s.ctrl.Index())
}

// === Navigation and Output Handlers ===

type navigateArgs struct {
	Delta int `json:"delta"`
}

type navigateResult struct {
	Moved     bool   `json:"moved"`
	Index     int    `json:"index"`
	Total     int    `json:"total"`
	ImagePath string `json:"image_path,omitempty"`
}

func (s *Server) handleReviewNavigate(args json.RawMessage) (interface{}, error) {
	var a navigateArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}

	result := navigateResult{
		Moved: s.ctrl.Navigate(a.Delta),
		Index: s.ctrl.Index(),
		Total: s.ctrl.Len(),
	}
	if cur, err := s.ctrl.Current(); err == nil {
		result.ImagePath = cur.ImagePath
	}
	return result, nil
}

type previewResult struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

func (s *Server) handleReviewPreview(args json.RawMessage) (interface{}, error) {
	var a indexArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	index := s.resolveIndex(a.Index)
	text, err := s.ctrl.Preview(index)
	if err != nil {
		return nil, err
	}
	return previewResult{Index: index, Text: text}, nil
}

// === Visual Inspection Handlers ===

type renderArgs struct {
	ShowPredictions *bool   `json:"show_predictions"`
	ShowLabels      *bool   `json:"show_labels"`
	ShowFinal       bool    `json:"show_final"`
	SelectedKind    string  `json:"selected_kind"`
	SelectedIndex   *int    `json:"selected_index"`
	Brightness      float64 `json:"brightness"`
	Contrast        float64 `json:"contrast"`
	Scale           float64 `json:"scale"`
}

func (s *Server) handleReviewRender(args json.RawMessage) (interface{}, error) {
	var a renderArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	scale, err := checkScale(a.Scale)
	if err != nil {
		return nil, err
	}

	img, err := s.ctrl.Current()
	if err != nil {
		return nil, err
	}

	var selected session.Kind
	if a.SelectedKind != "" {
		if selected, err = session.ParseKind(a.SelectedKind); err != nil {
			return nil, err
		}
	}
	isSelected := func(kind session.Kind, i int) bool {
		return kind == selected && a.SelectedIndex != nil && *a.SelectedIndex == i
	}

	var boxes []imaging.OverlayBox
	if a.ShowLabels == nil || *a.ShowLabels {
		for i, l := range img.Labels {
			r, err := l.Rect(img.Width, img.Height)
			if err != nil {
				continue
			}
			style := imaging.StyleLabel
			if !l.Kept {
				style = imaging.StyleRejectedLabel
			}
			boxes = append(boxes, imaging.OverlayBox{
				Rect:     r,
				Style:    style,
				Caption:  s.ctrl.ClassName(l.ClassID()),
				Selected: isSelected(session.KindLabel, i),
			})
		}
	}
	if a.ShowPredictions == nil || *a.ShowPredictions {
		for i, p := range img.Predictions {
			r, err := p.Rect(img.Width, img.Height)
			if err != nil {
				continue
			}
			style := imaging.StylePrediction
			if p.Disagrees {
				style = imaging.StyleFlaggedPrediction
			}
			boxes = append(boxes, imaging.OverlayBox{
				Rect:     r,
				Style:    style,
				Caption:  s.ctrl.ClassName(p.ClassID()) + ":" + strconv.FormatFloat(p.Confidence, 'f', 2, 64),
				Accepted: p.Accepted,
				Selected: isSelected(session.KindPrediction, i),
			})
		}
	}
	if a.ShowFinal {
		for _, line := range review.CollectFinalLines(img) {
			r, err := review.Box{Line: line}.Rect(img.Width, img.Height)
			if err != nil {
				continue
			}
			boxes = append(boxes, imaging.OverlayBox{Rect: r, Style: imaging.StyleFinal})
		}
	}

	return imaging.Render(img.Image, boxes, imaging.RenderOptions{
		Brightness: a.Brightness,
		Contrast:   a.Contrast,
		Scale:      scale,
	})
}

// checkScale defaults an unset scale to 1 and rejects anything outside
// (0, imaging.MaxScale].
func checkScale(scale float64) (float64, error) {
	if scale == 0 {
		return 1.0, nil
	}
	if scale < 0 || scale > imaging.MaxScale {
		return 0, errors.Errorf("scale %g outside (0, %g]", scale, imaging.MaxScale)
	}
	return scale, nil
}

type cropBoxArgs struct {
	boxArgs
	Padding *int    `json:"padding"`
	Scale   float64 `json:"scale"`
}

func (s *Server) handleReviewCropBox(args json.RawMessage) (interface{}, error) {
	var a cropBoxArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	kind, i, err := a.validate()
	if err != nil {
		return nil, err
	}
	padding := 10
	if a.Padding != nil {
		padding = *a.Padding
	}
	if a.Scale, err = checkScale(a.Scale); err != nil {
		return nil, err
	}

	img, err := s.ctrl.Current()
	if err != nil {
		return nil, err
	}

	var box review.Box
	switch kind {
	case session.KindPrediction:
		if i < 0 || i >= len(img.Predictions) {
			return nil, errors.Wrapf(review.ErrIndexOutOfRange, "prediction %d", i)
		}
		box = img.Predictions[i].Box
	default:
		if i < 0 || i >= len(img.Labels) {
			return nil, errors.Wrapf(review.ErrIndexOutOfRange, "label %d", i)
		}
		box = img.Labels[i].Box
	}

	r, err := box.Rect(img.Width, img.Height)
	if err != nil {
		return nil, err
	}
	return imaging.CropBox(img.Image, r, padding, a.Scale)
}

// === Journal Handlers ===

type historyArgs struct {
	Limit int `json:"limit"`
}

func (s *Server) handleReviewHistory(args json.RawMessage) (interface{}, error) {
	if s.history == nil {
		return nil, errors.New("save history is disabled")
	}
	var a historyArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Limit == 0 {
		a.Limit = 20
	}
	entries, err := s.history.Recent(a.Limit)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"entries": entries}, nil
}
