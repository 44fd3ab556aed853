package fingerprint

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// Boxes returns the bounding boxes of all faces in detector order.
func (r *FaceResponse) Boxes() [][]float64 {
	boxes := make([][]float64, len(r.Faces))
	for i := range r.Faces {
		boxes[i] = r.Faces[i].BBox
	}
	return boxes
}
