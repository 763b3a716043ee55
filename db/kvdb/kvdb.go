package kvdb

const (
	BucketResources = "resources"
	BucketContexts  = "contexts"
)

var buckets = []string{BucketResources, BucketContexts}

type DB interface {
	Set(bucket string, key string, value string) error
	// Create stores value only when key is absent and fails with
	// ErrAlreadyExists otherwise.
	Create(bucket string, key string, value string) error
	Get(bucket string, key string) (string, error)
	Delete(bucket string, key string) error
	// Scan calls fn for every key starting with prefix, in key order.
	Scan(bucket string, prefix string, fn func(key string, value string) error) error
	Close() error
}
