package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/marketplace/internal/asset"
)

const maxNameAttempts = 10

// Config describes the bucket and how to reach it. Endpoint is optional and
// switches the client to path-style addressing for MinIO and friends.
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	PublicURL string
	KeyPrefix string

	// Breaker settings; zero values use the defaults.
	BreakerTimeout      time.Duration
	ConsecutiveFailures uint32
}

type objectAPI interface {
	PutObject(ctx context.Context, in *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
}

// Store keeps assets in an S3 bucket. Every call goes through a circuit
// breaker so an unreachable bucket fails fast.
type Store struct {
	api       objectAPI
	bucket    string
	keyPrefix string
	publicURL string
	breaker   *gobreaker.CircuitBreaker[struct{}]
	logger    *slog.Logger
}

var _ asset.Store = (*Store)(nil)

var breakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Name: "marketplace_asset_store_breaker_state",
	Help: "Circuit breaker state of the asset store (0=closed, 1=half-open, 2=open).",
}, []string{"bucket"})

// RegisterMetrics registers the breaker state gauge with reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	if err := reg.Register(breakerState); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return err
		}
	}
	return nil
}

// New builds an S3 client from cfg and wraps it in a Store.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Bucket == "" || cfg.PublicURL == "" {
		return nil, errors.New("s3 bucket and public URL are required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newStore(client, cfg, logger), nil
}

func newStore(api objectAPI, cfg Config, logger *slog.Logger) *Store {
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}

	s := &Store{
		api:       api,
		bucket:    cfg.Bucket,
		keyPrefix: strings.Trim(cfg.KeyPrefix, "/"),
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		logger:    logger,
	}
	breakerState.WithLabelValues(cfg.Bucket).Set(0)

	s.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "s3:" + cfg.Bucket,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isPreconditionFailed(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			breakerState.WithLabelValues(cfg.Bucket).Set(float64(to))
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return s
}

// Put uploads data under a fresh key. The upload is conditional so an
// existing object is never replaced; a taken key gets a numeric suffix.
func (s *Store) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	candidate := name
	for n := 1; n <= maxNameAttempts; n++ {
		key := s.objectKey(candidate)
		_, err := s.breaker.Execute(func() (struct{}, error) {
			_, err := s.api.PutObject(ctx, &awss3.PutObjectInput{
				Bucket:        aws.String(s.bucket),
				Key:           aws.String(key),
				Body:          bytes.NewReader(data),
				ContentType:   aws.String(contentType),
				ContentLength: aws.Int64(int64(len(data))),
				IfNoneMatch:   aws.String("*"),
			})
			return struct{}{}, err
		})
		if isPreconditionFailed(err) {
			candidate = asset.WithSuffix(name, n)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("put object %s: %w", key, err)
		}
		return s.publicURL + "/" + key, nil
	}
	return "", fmt.Errorf("no free object key for %q", name)
}

// Delete removes the object behind ref. S3 treats a missing key as deleted.
func (s *Store) Delete(ctx context.Context, ref string) error {
	key, ok := s.key(ref)
	if !ok {
		return fmt.Errorf("reference %q is not managed by this store", ref)
	}
	_, err := s.breaker.Execute(func() (struct{}, error) {
		_, err := s.api.DeleteObject(ctx, &awss3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		return struct{}{}, err
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

func (s *Store) Owns(ref string) bool {
	_, ok := s.key(ref)
	return ok
}

func (s *Store) Name() string { return "s3" }

// State returns the breaker state.
func (s *Store) State() gobreaker.State { return s.breaker.State() }

func (s *Store) objectKey(name string) string {
	if s.keyPrefix == "" {
		return name
	}
	return s.keyPrefix + "/" + name
}

func (s *Store) key(ref string) (string, bool) {
	key, found := strings.CutPrefix(ref, s.publicURL+"/")
	if !found || key == "" || strings.Contains(key, "..") {
		return "", false
	}
	if s.keyPrefix != "" && !strings.HasPrefix(key, s.keyPrefix+"/") {
		return "", false
	}
	return key, true
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed"
}
