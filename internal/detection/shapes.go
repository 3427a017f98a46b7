package detection

import (
	"context"
	"image"
	"math"

	"github.com/ironsheep/annotation-corrector/internal/geometry"
)

// Shape classes emitted by ShapeDetector.
const (
	ClassRectangle = 0
	ClassCircle    = 1
)

// Point represents a 2D coordinate in pixel space.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ShapeDetector finds axis-aligned rectangles and circles using edge and
// contour analysis. It needs no model and is meant for diagrams, synthetic
// datasets and smoke tests of the review workflow.
type ShapeDetector struct {
	// MinArea is the minimum rectangle area in square pixels. Typical: 100-1000.
	MinArea int

	// Tolerance is the rectangularity threshold (0.0 to 1.0). Typical: 0.8-0.95.
	Tolerance float64

	// MinRadius and MaxRadius bound the circle search. MaxRadius 0 disables
	// circle detection, which is by far the slower of the two.
	MinRadius int
	MaxRadius int
}

// NewShapeDetector returns a detector with rectangle-only defaults.
func NewShapeDetector() *ShapeDetector {
	return &ShapeDetector{MinArea: 100, Tolerance: 0.8}
}

// ClassNames implements ClassNamer.
func (d *ShapeDetector) ClassNames() []string {
	return []string{"rectangle", "circle"}
}

// Predict implements Detector.
func (d *ShapeDetector) Predict(ctx context.Context, img image.Image) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	edges := detectEdges(img, width, height)

	boxes := detectRectangles(edges, width, height, d.MinArea, d.Tolerance)

	if d.MaxRadius > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		boxes = append(boxes, detectCircles(edges, width, height, d.MinRadius, d.MaxRadius)...)
	}

	return toDetections(boxes, width, height), nil
}

// detectRectangles groups edge pixels into contours and keeps those whose
// length is close to the perimeter of their bounding box.
//
// Rectangularity = 1 - |contour_length - expected_perimeter| / expected_perimeter.
// Only axis-aligned rectangles are found and nested outlines are reported
// separately.
func detectRectangles(edges [][]bool, width, height, minArea int, tolerance float64) []Box {
	contours := findContours(edges, width, height)
	boxes := make([]Box, 0)

	for _, contour := range contours {
		if len(contour) < 4 {
			continue
		}

		minX, minY := width, height
		maxX, maxY := 0, 0
		for _, p := range contour {
			if p.X < minX {
				minX = p.X
			}
			if p.X > maxX {
				maxX = p.X
			}
			if p.Y < minY {
				minY = p.Y
			}
			if p.Y > maxY {
				maxY = p.Y
			}
		}

		rectWidth := maxX - minX
		rectHeight := maxY - minY
		if rectWidth*rectHeight < minArea {
			continue
		}

		expectedPerimeter := 2 * (rectWidth + rectHeight)
		if expectedPerimeter == 0 {
			continue
		}
		rectangularity := 1.0 - math.Abs(float64(len(contour)-expectedPerimeter))/float64(expectedPerimeter)
		if rectangularity < tolerance {
			continue
		}

		boxes = append(boxes, Box{
			ClassID: ClassRectangle,
			Rect: geometry.Rect{
				X:      float64(minX),
				Y:      float64(minY),
				Width:  float64(rectWidth),
				Height: float64(rectHeight),
			},
			Confidence: rectangularity,
		})
	}

	return boxes
}

// circle is an intermediate Hough result.
type circle struct {
	center     Point
	radius     int
	confidence float64
}

// detectCircles runs a Hough circle transform over the edge map.
//
// For each radius every edge pixel votes every 10 degrees for candidate
// centers; local maxima above 60% of the expected circumference are kept.
// Confidence is votes / (2 * radius), capped at 1.
func detectCircles(edges [][]bool, width, height, minRadius, maxRadius int) []Box {
	if minRadius < 1 {
		minRadius = 1
	}
	circles := make([]circle, 0)

	for radius := minRadius; radius <= maxRadius; radius++ {
		accumulator := make([][]int, height)
		for y := 0; y < height; y++ {
			accumulator[y] = make([]int, width)
		}

		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				if !edges[y][x] {
					continue
				}
				for angle := 0; angle < 360; angle += 10 {
					rad := float64(angle) * math.Pi / 180
					cx := x - int(float64(radius)*math.Cos(rad))
					cy := y - int(float64(radius)*math.Sin(rad))
					if cx >= 0 && cx < width && cy >= 0 && cy < height {
						accumulator[cy][cx]++
					}
				}
			}
		}

		threshold := int(float64(2*radius) * 0.6)
		for y := radius; y < height-radius; y++ {
			for x := radius; x < width-radius; x++ {
				if accumulator[y][x] < threshold || !isLocalMax(accumulator, x, y, width, height) {
					continue
				}
				confidence := float64(accumulator[y][x]) / float64(2*radius)
				circles = append(circles, circle{
					center:     Point{X: x, Y: y},
					radius:     radius,
					confidence: math.Min(confidence, 1.0),
				})
			}
		}
	}

	filtered := filterDuplicateCircles(circles)

	boxes := make([]Box, 0, len(filtered))
	for _, c := range filtered {
		d := float64(2 * c.radius)
		boxes = append(boxes, Box{
			ClassID: ClassCircle,
			Rect: geometry.Rect{
				X:      float64(c.center.X - c.radius),
				Y:      float64(c.center.Y - c.radius),
				Width:  d,
				Height: d,
			},
			Confidence: c.confidence,
		})
	}
	return boxes
}

func isLocalMax(acc [][]int, x, y, width, height int) bool {
	for dy := -5; dy <= 5; dy++ {
		for dx := -5; dx <= 5; dx++ {
			if dy == 0 && dx == 0 {
				continue
			}
			ny, nx := y+dy, x+dx
			if ny >= 0 && ny < height && nx >= 0 && nx < width && acc[ny][nx] > acc[y][x] {
				return false
			}
		}
	}
	return true
}

// detectEdges performs simple gradient-based edge detection.
//
// Pixels where the grayscale difference to the right or lower neighbor
// exceeds 30 are edges. Border pixels are never edges.
func detectEdges(img image.Image, width, height int) [][]bool {
	bounds := img.Bounds()
	edges := make([][]bool, height)
	threshold := 30.0

	for y := 0; y < height; y++ {
		edges[y] = make([]bool, width)
		for x := 0; x < width; x++ {
			if x == 0 || y == 0 || x == width-1 || y == height-1 {
				continue
			}

			c := grayValue(img, x+bounds.Min.X, y+bounds.Min.Y)
			cx := grayValue(img, x+1+bounds.Min.X, y+bounds.Min.Y)
			cy := grayValue(img, x+bounds.Min.X, y+1+bounds.Min.Y)

			dx := math.Abs(float64(c) - float64(cx))
			dy := math.Abs(float64(c) - float64(cy))

			if dx > threshold || dy > threshold {
				edges[y][x] = true
			}
		}
	}

	return edges
}

// findContours groups 8-connected edge pixels. Groups under 10 pixels are noise.
func findContours(edges [][]bool, width, height int) [][]Point {
	visited := make([][]bool, height)
	for y := 0; y < height; y++ {
		visited[y] = make([]bool, width)
	}

	contours := make([][]Point, 0)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if edges[y][x] && !visited[y][x] {
				contour := make([]Point, 0)
				floodFill(edges, visited, x, y, width, height, &contour)
				if len(contour) >= 10 {
					contours = append(contours, contour)
				}
			}
		}
	}

	return contours
}

// floodFill is an iterative 8-connected flood fill.
func floodFill(edges, visited [][]bool, startX, startY, width, height int, contour *[]Point) {
	stack := []Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		if visited[p.Y][p.X] || !edges[p.Y][p.X] {
			continue
		}

		visited[p.Y][p.X] = true
		*contour = append(*contour, p)

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, Point{X: p.X + dx, Y: p.Y + dy})
			}
		}
	}
}

// grayValue converts a pixel to grayscale using BT.601 luminance weights.
func grayValue(img image.Image, x, y int) uint8 {
	r, g, b, _ := img.At(x, y).RGBA()
	return uint8((float64(r>>8)*0.299 + float64(g>>8)*0.587 + float64(b>>8)*0.114))
}

// filterDuplicateCircles drops circles whose center lies within the average
// radius of an already kept circle.
func filterDuplicateCircles(circles []circle) []circle {
	if len(circles) == 0 {
		return circles
	}

	filtered := make([]circle, 0)
	for _, c := range circles {
		isDuplicate := false
		for _, f := range filtered {
			dx := c.center.X - f.center.X
			dy := c.center.Y - f.center.Y
			dist := math.Sqrt(float64(dx*dx + dy*dy))
			if dist < float64(c.radius+f.radius)/2 {
				isDuplicate = true
				break
			}
		}
		if !isDuplicate {
			filtered = append(filtered, c)
		}
	}
	return filtered
}
