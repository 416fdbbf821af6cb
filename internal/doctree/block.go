package doctree

// BlockType is the semantic type of a content block.
type BlockType string

const (
	BlockHeading  BlockType = "heading"
	BlockText     BlockType = "text"
	BlockListItem BlockType = "list_item"
	BlockTable    BlockType = "table"
	BlockImage    BlockType = "image"
	BlockFormula  BlockType = "formula"
)

// IsVisual reports whether blocks of this type are always kept by the filters
// and always emitted as their own unit.
func (t BlockType) IsVisual() bool {
	return t == BlockTable || t == BlockImage || t == BlockFormula
}

// BBox is an axis-aligned bounding box in page coordinates (y grows downward).
type BBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

func (b BBox) Width() float64  { return b.X1 - b.X0 }
func (b BBox) Height() float64 { return b.Y1 - b.Y0 }

// Area returns the box area, or 0 for degenerate boxes.
func (b BBox) Area() float64 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

func (b BBox) CenterY() float64 { return (b.Y0 + b.Y1) / 2 }

// Intersect returns the overlapping area of two boxes.
func (b BBox) Intersect(o BBox) float64 {
	x0 := max(b.X0, o.X0)
	y0 := max(b.Y0, o.Y0)
	x1 := min(b.X1, o.X1)
	y1 := min(b.Y1, o.Y1)
	if x1 <= x0 || y1 <= y0 {
		return 0
	}
	return (x1 - x0) * (y1 - y0)
}

// Union returns the smallest box covering both.
func (b BBox) Union(o BBox) BBox {
	return BBox{
		X0: min(b.X0, o.X0),
		Y0: min(b.Y0, o.Y0),
		X1: max(b.X1, o.X1),
		Y1: max(b.Y1, o.Y1),
	}
}

// Slice returns the box as [x0, y0, x1, y1], or nil for a nil box.
func (b *BBox) Slice() []float64 {
	if b == nil {
		return nil
	}
	return []float64{b.X0, b.Y0, b.X1, b.Y1}
}

// UnionAll folds boxes into one, returning nil when none are given.
func UnionAll(boxes []BBox) *BBox {
	if len(boxes) == 0 {
		return nil
	}
	u := boxes[0]
	for _, b := range boxes[1:] {
		u = u.Union(b)
	}
	return &u
}

// BlockMeta holds source traceability for a block.
type BlockMeta struct {
	RawType         string   `json:"raw_type"`
	Index           int      `json:"index"`
	HasIndex        bool     `json:"-"`
	MergedIDs       []string `json:"merged_ids,omitempty"`
	ImagePaths      []string `json:"image_paths,omitempty"`
	LocalImagePaths []string `json:"local_image_paths,omitempty"`
	TableHTML       string   `json:"table_html,omitempty"`
}

// ContentBlock is the atomic unit from the source page stream.
type ContentBlock struct {
	ID      string    `json:"id"`
	Type    BlockType `json:"type"`
	Text    string    `json:"text"`
	PageIdx int       `json:"page_idx"`
	BBox    *BBox     `json:"bbox"`
	Meta    BlockMeta `json:"metadata"`
}

// PageSize is a page's rendered width and height.
type PageSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PageSizes maps 0-based page index to its size.
type PageSizes map[int]PageSize
