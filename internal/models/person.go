package models

// Person is an identity record. Auto-enrolled people have no name until an
// operator sets one.
type Person struct {
	ID    int64   `json:"id" db:"id"`
	Name  *string `json:"name" db:"name"`
	Faces int     `json:"faces"`
}

// FaceEmbedding is one stored descriptor. Embeddings are immutable once written.
type FaceEmbedding struct {
	ID       int64  `json:"id" db:"id"`
	PersonID int64  `json:"person_id" db:"person_id"`
	Vector   Vector `json:"-" db:"encoding"`
	Source   string `json:"source" db:"source"`
}

// StoredEmbedding is the projection the matcher scans.
type StoredEmbedding struct {
	PersonID int64
	Vector   Vector
}

// StoreStats summarises the identity store.
type StoreStats struct {
	People     int `json:"people"`
	Embeddings int `json:"embeddings"`
	VideoHits  int `json:"video_hits"`
}
