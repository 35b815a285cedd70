package model

const (
	LayoutNHWC = "NHWC"
	LayoutNCHW = "NCHW"
)

// DefaultClasses is the label order the shipped waste model was trained
// against. It is only used when no metadata file sits next to the model.
var DefaultClasses = []string{
	"battery", "biological", "brown-glass", "cardboard", "clothes",
	"green-glass", "metal", "paper", "plastic", "shoes", "trash", "white-glass",
}

const DefaultImageSize = 224

type Metadata struct {
	InputName   string   `json:"input_name"`
	OutputName  string   `json:"output_name"`
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Layout      string   `json:"layout"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
}

type Prediction struct {
	Label      string  `json:"label"`
	Confidence float32 `json:"confidence"`
}

type PredictionRequest struct {
	Image []float32 `json:"image"`
}

type PredictionResponse struct {
	Predictions []Prediction `json:"predictions"`
}
