package detection

import (
	"context"
	"image"
	"os"
	"sync"

	"github.com/ironsheep/annotation-corrector/internal/geometry"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
)

// COCOClasses are the class names of the stock YOLOv8 COCO export.
var COCOClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear", "hair drier",
	"toothbrush",
}

// ONNXConfig configures an ONNXDetector.
type ONNXConfig struct {
	ModelPath string
	// SharedLibraryPath points at libonnxruntime. Empty uses the runtime default.
	SharedLibraryPath   string
	InputSize           int // square model input, 640 for stock exports
	Classes             []string
	ConfidenceThreshold float64
	IoUThreshold        float64
	IntraOpThreads      int
}

// ONNXDetector runs a YOLOv8-style detection model exported to ONNX. The
// model takes a [1, 3, S, S] float input named "images" and produces a
// [1, 4+C, N] output named "output0".
type ONNXDetector struct {
	cfg     ONNXConfig
	anchors int

	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

var ortInit sync.Once
var ortInitErr error

// NewONNXDetector loads the model and allocates its tensors.
func NewONNXDetector(cfg ONNXConfig) (*ONNXDetector, error) {
	if cfg.InputSize <= 0 {
		cfg.InputSize = 640
	}
	if len(cfg.Classes) == 0 {
		cfg.Classes = COCOClasses
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "model not found at %s", cfg.ModelPath)
	}

	ortInit.Do(func() {
		if cfg.SharedLibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.SharedLibraryPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, errors.Wrap(ortInitErr, "error initializing ORT environment")
	}

	anchors := anchorCount(cfg.InputSize)

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(cfg.InputSize), int64(cfg.InputSize)))
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(4+len(cfg.Classes)), int64(anchors)))
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "error creating output tensor")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrap(err, "error creating ORT session options")
	}
	defer options.Destroy()

	if cfg.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
			log.WithError(err).Warn("could not set intra-op threads")
		}
	}

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{"images"},
		[]string{"output0"},
		[]ort.Value{input},
		[]ort.Value{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrap(err, "error creating ORT session")
	}

	log.WithFields(log.Fields{
		"model":   cfg.ModelPath,
		"classes": len(cfg.Classes),
		"input":   cfg.InputSize,
	}).Info("ONNX model loaded")

	return &ONNXDetector{
		cfg:     cfg,
		anchors: anchors,
		session: session,
		input:   input,
		output:  output,
	}, nil
}

// ClassNames implements ClassNamer.
func (d *ONNXDetector) ClassNames() []string {
	return d.cfg.Classes
}

// Predict implements Detector. The running model call is not interruptible;
// ctx is only checked before it starts.
func (d *ONNXDetector) Predict(ctx context.Context, img image.Image) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == nil {
		return nil, errors.New("model not loaded")
	}

	if err := prepareInput(img, d.input.GetData(), d.cfg.InputSize); err != nil {
		return nil, errors.Wrap(err, "failed to prepare input")
	}
	if err := d.session.Run(); err != nil {
		return nil, errors.Wrap(err, "failed to run inference")
	}

	bounds := img.Bounds()
	boxes := decodeYOLOv8(d.output.GetData(), len(d.cfg.Classes), d.anchors, d.cfg.InputSize,
		bounds.Dx(), bounds.Dy(), d.cfg.ConfidenceThreshold)
	boxes = ApplyGreedyNMS(boxes, NMSConfig{IoUThreshold: d.cfg.IoUThreshold, ClassAware: true})

	return toDetections(boxes, bounds.Dx(), bounds.Dy()), nil
}

// Close releases the session and tensors.
func (d *ONNXDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == nil {
		return nil
	}
	err := d.session.Destroy()
	d.input.Destroy()
	d.output.Destroy()
	d.session = nil
	return errors.Wrap(err, "error destroying ORT session")
}

// anchorCount is the number of output anchors for a stride 8/16/32 head.
func anchorCount(size int) int {
	a, b, c := size/8, size/16, size/32
	return a*a + b*b + c*c
}

// prepareInput resizes img to size x size and writes planar RGB in [0, 1].
func prepareInput(img image.Image, data []float32, size int) error {
	channelSize := size * size
	if len(data) < channelSize*3 {
		return errors.Errorf("destination tensor only holds %d floats, needs %d", len(data), channelSize*3)
	}
	red := data[0:channelSize]
	green := data[channelSize : channelSize*2]
	blue := data[channelSize*2 : channelSize*3]

	resized := resize.Resize(uint(size), uint(size), img, resize.Lanczos3)
	rb := resized.Bounds()

	i := 0
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := resized.At(rb.Min.X+x, rb.Min.Y+y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(b>>8) / 255.0
			i++
		}
	}
	return nil
}

// decodeYOLOv8 converts the transposed [4+C, N] head output into pixel boxes
// for an image of imgW x imgH. Rows 0-3 hold cx, cy, w, h in input pixels;
// rows 4.. hold per-class scores.
func decodeYOLOv8(output []float32, numClasses, anchors, inputSize, imgW, imgH int, threshold float64) []Box {
	if len(output) < (4+numClasses)*anchors {
		return nil
	}

	sx := float64(imgW) / float64(inputSize)
	sy := float64(imgH) / float64(inputSize)

	boxes := make([]Box, 0)
	for idx := 0; idx < anchors; idx++ {
		classID := -1
		best := float32(-1e9)
		for c := 0; c < numClasses; c++ {
			if p := output[anchors*(c+4)+idx]; p > best {
				best = p
				classID = c
			}
		}
		if classID < 0 || float64(best) < threshold {
			continue
		}

		xc, yc := float64(output[idx]), float64(output[anchors+idx])
		w, h := float64(output[2*anchors+idx]), float64(output[3*anchors+idx])

		boxes = append(boxes, Box{
			ClassID: classID,
			Rect: geometry.Rect{
				X:      (xc - w/2) * sx,
				Y:      (yc - h/2) * sy,
				Width:  w * sx,
				Height: h * sy,
			},
			Confidence: float64(best),
		})
	}
	return boxes
}
