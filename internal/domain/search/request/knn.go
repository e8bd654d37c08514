package request

// KNN is the store-level nearest-neighbour lookup derived from a Request.
type KNN struct {
	Vector        []float32
	NumCandidates int
	Limit         int
	// MinReviewScore, when set, is pushed into the KNN clause as a pre-filter.
	MinReviewScore *int
	// Full projects whole listings; otherwise only id and review score value come back.
	Full bool
}

// KNN builds the store lookup for this request.
func (r *Request) KNN(vector []float32, full bool) KNN {
	return KNN{
		Vector:         vector,
		NumCandidates:  r.numCandidates,
		Limit:          r.limit,
		MinReviewScore: r.minReviewScore,
		Full:           full,
	}
}
