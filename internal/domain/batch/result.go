package batch

// Status is the processing outcome of a single embedding batch.
type Status string

// Batch status values.
const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Result is the outcome of one embedding batch: the half-open range
// [Start, Start+Size) of the input texts it covered.
type Result struct {
	start  int
	size   int
	status Status
	err    error
}

// NewOK creates a successful batch result.
func NewOK(start, size int) Result { return Result{start: start, size: size, status: StatusOK} }

// NewError creates a failed batch result.
func NewError(start, size int, err error) Result {
	return Result{start: start, size: size, status: StatusError, err: err}
}

// Start returns the index of the first text in the batch.
func (r Result) Start() int { return r.start }

// Size returns the number of texts in the batch.
func (r Result) Size() int { return r.size }

// Status returns the processing outcome.
func (r Result) Status() Status { return r.status }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Stats aggregates batch outcomes for observability.
type Stats struct {
	Succeeded int
	Failed    int
}

// Summarize counts successful and failed batches.
func Summarize(results []Result) Stats {
	var s Stats
	for _, r := range results {
		if r.status == StatusOK {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}
