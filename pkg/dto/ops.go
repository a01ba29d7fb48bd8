package dto

// PersonResponse is one row of GET /v1/people on the ops server.
type PersonResponse struct {
	ID        int64   `json:"id"`
	Name      *string `json:"name"`
	FaceCount int     `json:"face_count"`
}

type StatsResponse struct {
	People     int `json:"people"`
	Embeddings int `json:"embeddings"`
	VideoHits  int `json:"video_hits"`
}
