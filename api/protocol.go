package api

const (
	maxBodySize = 64 * 1024 // 64 KiB

	headerIdempotencyKey = "Idempotency-Key"
)

type detailResponse struct {
	Detail string `json:"detail"`
}

var (
	notFoundResponse  = detailResponse{Detail: "Not found."}
	duplicateResponse = detailResponse{Detail: "Duplicate request."}
)
