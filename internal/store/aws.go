package store

import (
	"bytes"
	"context"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmorgan81/modelsweep/internal/log"
	"github.com/samber/lo"
)

type PutObjectAPI interface {
	PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Uploader struct {
	Client PutObjectAPI
	Bucket string
	Prefix string
}

// Key maps an upload name to its object key. Local directory components are
// dropped so the bucket layout does not depend on where the run happened.
func (u *S3Uploader) Key(name string) string {
	return path.Join(u.Prefix, path.Base(strings.ReplaceAll(name, "\\", "/")))
}

func (u *S3Uploader) Upload(ctx context.Context, params UploadParams) error {
	key := u.Key(params.Name)
	log := log.FromContextOrDiscard(ctx).WithGroup("s3").With(
		"key", key,
		"content-type", params.ContentType,
		"bucket", u.Bucket,
	)
	log.Info("uploading to s3")

	_, err := u.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(u.Bucket),
		Key:          aws.String(key),
		ContentType:  aws.String(params.ContentType),
		Body:         bytes.NewReader(params.Data),
		Metadata:     params.Metadata,
		StorageClass: s3types.StorageClassIntelligentTiering,
	})
	return err
}

type CreateInvalidationAPI interface {
	CreateInvalidation(context.Context, *cloudfront.CreateInvalidationInput, ...func(*cloudfront.Options)) (*cloudfront.CreateInvalidationOutput, error)
}

type CloudFrontInvalidator struct {
	Client       CreateInvalidationAPI
	Distribution string
	// Key maps an output name to the object key it was uploaded under.
	Key func(string) string
}

func (i *CloudFrontInvalidator) Invalidate(ctx context.Context, paths []string) error {
	paths = lo.Map(paths, func(p string, _ int) string {
		if i.Key != nil {
			p = i.Key(p)
		}
		return lo.Ternary(strings.HasPrefix(p, "/"), p, "/"+p)
	})
	log := log.FromContextOrDiscard(ctx).WithGroup("cloudfront").With("paths", paths, "distribution", i.Distribution)
	log.Info("invalidating paths in cloudfront")

	_, err := i.Client.CreateInvalidation(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(i.Distribution),
		InvalidationBatch: &cftypes.InvalidationBatch{
			CallerReference: aws.String(time.Now().UTC().Format("20060102150405.000000000")),
			Paths: &cftypes.Paths{
				Quantity: aws.Int32(int32(len(paths))),
				Items:    paths,
			},
		},
	})
	return err
}
