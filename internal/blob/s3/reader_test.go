package s3blob

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/peterldowns/testy/check"
)

type statusErr int

func (e statusErr) Error() string       { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) HTTPStatusCode() int { return int(e) }

func TestMissingObject(t *testing.T) {
	check.False(t, missingObject(nil))
	check.True(t, missingObject(fmt.Errorf("get: %w", &types.NoSuchKey{})))
	check.True(t, missingObject(&types.NotFound{}))
	check.True(t, missingObject(fmt.Errorf("head: %w", statusErr(404))))
	check.False(t, missingObject(statusErr(403)))
	check.False(t, missingObject(errors.New("connection reset")))
}

func TestBlobInfo(t *testing.T) {
	at := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	info := blobInfo(types.Object{Key: aws.String("archive/bids/x.jsonl"), Size: aws.Int64(12), LastModified: &at})
	check.Equal(t, "archive/bids/x.jsonl", info.Path)
	check.Equal(t, int64(12), info.Size)
	check.Equal(t, at, info.LastModified)
}
