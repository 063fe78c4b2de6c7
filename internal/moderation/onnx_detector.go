package moderation

import (
	"fmt"
	"image"
	"math"
	"sort"
	"sync"

	xdraw "golang.org/x/image/draw"
	ort "github.com/yalue/onnxruntime_go"
)

// OnnxDetectorConfig configures the detection backend (C3, §4.3).
type OnnxDetectorConfig struct {
	ModelPath      string
	OnnxLib        string
	InputSize      int     // square input side, e.g. 640
	Confidence     float64 // detections below this score are dropped before NMS
	IOUThreshold   float64 // NMS suppression threshold
	NumClasses     int
}

func (c *OnnxDetectorConfig) defaults() {
	if c.InputSize <= 0 {
		c.InputSize = 640
	}
	if c.Confidence <= 0 {
		c.Confidence = 0.5
	}
	if c.IOUThreshold <= 0 {
		c.IOUThreshold = 0.45
	}
}

// OnnxDetector implements Detector atop a YOLO-style ONNX model, following
// the ONNX Runtime session lifecycle of internal/wakeword/detector.go
// (SetSharedLibraryPath/InitializeEnvironment, a single NewAdvancedSession
// bound to fixed-shape input/output tensors, repeated Run calls). Unlike
// that streaming audio pipeline, this detector runs one image per call, so
// tensor reuse is guarded by a mutex instead of living inside a single
// processing goroutine; the mutex serializes Detect calls from every session
// sharing this detector (§5 Shared resources).
type OnnxDetector struct {
	cfg OnnxDetectorConfig

	mu      sync.Mutex
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	session *ort.AdvancedSession
}

// NewOnnxDetector initializes the ONNX Runtime environment and loads the
// model. Callers must call Close when the detector is no longer needed.
func NewOnnxDetector(cfg OnnxDetectorConfig) (*OnnxDetector, error) {
	cfg.defaults()

	ort.SetSharedLibraryPath(cfg.OnnxLib)
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("onnx init: %w", err)
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(cfg.InputSize), int64(cfg.InputSize)))
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("alloc input tensor: %w", err)
	}

	numAttrs := int64(4 + cfg.NumClasses)
	if cfg.NumClasses == 0 {
		numAttrs = 4 + 80 // default to a COCO-sized head if unspecified
	}
	numBoxes := int64((cfg.InputSize/8)*(cfg.InputSize/8) + (cfg.InputSize/16)*(cfg.InputSize/16) + (cfg.InputSize/32)*(cfg.InputSize/32))
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, numAttrs, numBoxes))
	if err != nil {
		input.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("alloc output tensor: %w", err)
	}

	inInfo, outInfo, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		input.Destroy()
		output.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("inspect model: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{inInfo[0].Name}, []string{outInfo[0].Name},
		[]ort.Value{input}, []ort.Value{output},
		nil,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &OnnxDetector{cfg: cfg, input: input, output: output, session: session}, nil
}

// Close releases the session, tensors, and ONNX Runtime environment.
func (d *OnnxDetector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session != nil {
		d.session.Destroy()
	}
	if d.input != nil {
		d.input.Destroy()
	}
	if d.output != nil {
		d.output.Destroy()
	}
	ort.DestroyEnvironment()
}

// Detect implements Detector: letterboxes img to the model's square input,
// runs inference, decodes the YOLO-style output head, and applies
// confidence filtering + NMS before mapping boxes back to source pixel
// coordinates.
func (d *OnnxDetector) Detect(img image.Image) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	size := d.cfg.InputSize

	scale := math.Min(float64(size)/float64(srcW), float64(size)/float64(srcH))
	resizedW := int(float64(srcW) * scale)
	resizedH := int(float64(srcH) * scale)
	padX := (size - resizedW) / 2
	padY := (size - resizedH) / 2

	letterboxed := image.NewNRGBA(image.Rect(0, 0, size, size))
	xdraw.BiLinear.Scale(letterboxed, image.Rect(padX, padY, padX+resizedW, padY+resizedH), img, bounds, xdraw.Src, nil)

	inData := d.input.GetData()
	plane := size * size
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := letterboxed.At(x, y).RGBA()
			idx := y*size + x
			inData[idx] = float32(r>>8) / 255.0
			inData[plane+idx] = float32(g>>8) / 255.0
			inData[2*plane+idx] = float32(b>>8) / 255.0
		}
	}

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}

	raw := decodeYOLOOutput(d.output.GetData(), d.cfg.NumClasses, size, d.cfg.Confidence)
	kept := nonMaxSuppression(raw, d.cfg.IOUThreshold)

	dets := make([]Detection, 0, len(kept))
	for _, b := range kept {
		dets = append(dets, Detection{
			ClassID:    b.classID,
			Confidence: b.score,
			X1:         clampInt(int((b.x1-float64(padX))/scale), 0, srcW),
			Y1:         clampInt(int((b.y1-float64(padY))/scale), 0, srcH),
			X2:         clampInt(int((b.x2-float64(padX))/scale), 0, srcW),
			Y2:         clampInt(int((b.y2-float64(padY))/scale), 0, srcH),
		})
	}
	return dets, nil
}

type rawBox struct {
	classID    int
	score      float64
	x1, y1, x2, y2 float64
}

// decodeYOLOOutput parses a [1, 4+numClasses, numBoxes] YOLO detection head:
// box centers/sizes in the first 4 rows, per-class scores in the rest.
func decodeYOLOOutput(data []float32, numClasses, inputSize int, confThresh float64) []rawBox {
	if numClasses == 0 {
		numClasses = 80
	}
	numAttrs := 4 + numClasses
	numBoxes := len(data) / numAttrs
	if numBoxes == 0 {
		return nil
	}

	boxes := make([]rawBox, 0, 32)
	for i := 0; i < numBoxes; i++ {
		cx := float64(data[0*numBoxes+i])
		cy := float64(data[1*numBoxes+i])
		w := float64(data[2*numBoxes+i])
		h := float64(data[3*numBoxes+i])

		bestClass := -1
		bestScore := 0.0
		for c := 0; c < numClasses; c++ {
			s := float64(data[(4+c)*numBoxes+i])
			if s > bestScore {
				bestScore = s
				bestClass = c
			}
		}
		if bestClass < 0 || bestScore < confThresh {
			continue
		}

		boxes = append(boxes, rawBox{
			classID: bestClass,
			score:   bestScore,
			x1:      clampFloat(cx-w/2, 0, float64(inputSize)),
			y1:      clampFloat(cy-h/2, 0, float64(inputSize)),
			x2:      clampFloat(cx+w/2, 0, float64(inputSize)),
			y2:      clampFloat(cy+h/2, 0, float64(inputSize)),
		})
	}
	return boxes
}

// nonMaxSuppression runs standard greedy per-class NMS.
func nonMaxSuppression(boxes []rawBox, iouThresh float64) []rawBox {
	sort.Slice(boxes, func(i, j int) bool { return boxes[i].score > boxes[j].score })

	kept := make([]rawBox, 0, len(boxes))
	suppressed := make([]bool, len(boxes))
	for i := range boxes {
		if suppressed[i] {
			continue
		}
		kept = append(kept, boxes[i])
		for j := i + 1; j < len(boxes); j++ {
			if suppressed[j] || boxes[j].classID != boxes[i].classID {
				continue
			}
			if rawBoxIOU(boxes[i], boxes[j]) > iouThresh {
				suppressed[j] = true
			}
		}
	}
	return kept
}

func rawBoxIOU(a, b rawBox) float64 {
	ix1, iy1 := math.Max(a.x1, b.x1), math.Max(a.y1, b.y1)
	ix2, iy2 := math.Min(a.x2, b.x2), math.Min(a.y2, b.y2)
	iw, ih := math.Max(0, ix2-ix1), math.Max(0, iy2-iy1)
	inter := iw * ih
	areaA := (a.x2 - a.x1) * (a.y2 - a.y1)
	areaB := (b.x2 - b.x1) * (b.y2 - b.y1)
	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
