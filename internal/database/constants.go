package database

// HNSW index parameters for face embeddings
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	// Higher values improve recall but slow down search.
	HNSWEfSearch = 100
)

// Distance function names accepted by DistanceByName.
const (
	DistanceEuclidean = "euclidean"
	DistanceCosine    = "cosine"
)
