package engine

import (
	"bytes"
	"context"
	"crypto/md5" // #nosec G501 -- the remote API requires an MD5 source checksum
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/namelens/ascgate/internal/core"
	"github.com/namelens/ascgate/internal/metrics"
)

// DefaultPartTimeout bounds a single byte range transfer.
const DefaultPartTimeout = 2 * time.Minute

// Journal persists upload progress.
type Journal interface {
	SaveUpload(ctx context.Context, record *core.UploadRecord) error
}

// UploadInput is one asset to upload.
type UploadInput struct {
	Kind         core.AssetKind
	FileName     string
	DeclaredSize int64
	SetID        string
	Payload      []byte
}

// Orchestrator runs the reserve, transfer and commit phases of an asset upload.
type Orchestrator struct {
	// API carries the reserve and commit calls; it attaches credentials.
	API Doer
	// Transfer sends byte ranges to the pre-authorized destinations.
	Transfer    *http.Client
	Journal     Journal
	PartTimeout time.Duration
	Clock       func() time.Time
	Logger      core.Logger
}

type reservation struct {
	Data struct {
		Type       string `json:"type"`
		ID         string `json:"id"`
		Attributes struct {
			UploadOperations []core.UploadOperation `json:"uploadOperations"`
		} `json:"attributes"`
	} `json:"data"`
}

// Upload reserves an asset in the target set, transfers the payload and
// commits it with its checksum. It returns the committed asset.
func (o *Orchestrator) Upload(ctx context.Context, in UploadInput) (*core.Resource, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if o == nil || o.API == nil {
		return nil, core.NewFailure(core.KindConfig, "upload orchestrator has no executor")
	}

	if err := validateInput(in); err != nil {
		return nil, err
	}

	logger := core.LoggerOrNop(o.Logger)
	record := &core.UploadRecord{
		ID:        uuid.New().String(),
		Kind:      in.Kind.Name,
		FileName:  in.FileName,
		FileSize:  in.DeclaredSize,
		SetID:     in.SetID,
		CreatedAt: o.now(),
	}

	ops, assetID, err := o.reserve(ctx, in)
	if err != nil {
		return nil, o.fail(ctx, record, err)
	}
	record.AssetID = assetID
	record.State = core.UploadStateReserved
	o.save(ctx, record)
	logger.Info("Reserved upload",
		zap.String("kind", in.Kind.Name),
		zap.String("file", in.FileName),
		zap.Int("operations", len(ops)))

	if err := core.ValidateUploadPlan(ops, int64(len(in.Payload))); err != nil {
		return nil, o.fail(ctx, record, err)
	}

	for i, op := range ops {
		if err := o.transfer(ctx, in.Payload, op); err != nil {
			logger.Warn("Upload part failed",
				zap.Int("operation", i),
				zap.Int64("offset", op.Offset),
				zap.Int64("length", op.Length))
			return nil, o.fail(ctx, record, err)
		}
	}
	record.State = core.UploadStateTransferred
	o.save(ctx, record)

	record.Checksum = Checksum(in.Payload)
	asset, err := o.commit(ctx, in.Kind, assetID, record.Checksum)
	if err != nil {
		return nil, o.fail(ctx, record, err)
	}

	record.State = core.UploadStateCommitted
	o.save(ctx, record)
	metrics.RecordUpload(in.Kind.Name, string(core.UploadStateCommitted))
	logger.Info("Committed upload",
		zap.String("kind", in.Kind.Name),
		zap.String("file", in.FileName),
		zap.Int64("bytes", in.DeclaredSize))

	return asset, nil
}

// Checksum is the base64 MD5 digest the commit call expects.
func Checksum(payload []byte) string {
	sum := md5.Sum(payload) // #nosec G401 -- checksum, not a security control
	return base64.StdEncoding.EncodeToString(sum[:])
}

func validateInput(in UploadInput) error {
	if strings.TrimSpace(in.Kind.ResourceType) == "" {
		return core.NewFailure(core.KindValidation, "asset kind is required")
	}
	if strings.TrimSpace(in.FileName) == "" {
		return core.NewFailure(core.KindValidation, "file name is required")
	}
	if strings.TrimSpace(in.SetID) == "" {
		return core.NewFailure(core.KindValidation, "destination set id is required")
	}
	if actual := int64(len(in.Payload)); actual != in.DeclaredSize {
		return core.Failuref(core.KindSizeMismatch, "declared size %d does not match payload length %d", in.DeclaredSize, actual)
	}
	if in.DeclaredSize == 0 {
		return core.NewFailure(core.KindValidation, "payload is empty")
	}
	return nil
}

func (o *Orchestrator) reserve(ctx context.Context, in UploadInput) ([]core.UploadOperation, string, error) {
	body := map[string]any{
		"data": map[string]any{
			"type": in.Kind.ResourceType,
			"attributes": map[string]any{
				"fileName": in.FileName,
				"fileSize": in.DeclaredSize,
			},
			"relationships": map[string]any{
				in.Kind.SetRelation: map[string]any{
					"data": map[string]any{"type": in.Kind.SetType, "id": in.SetID},
				},
			},
		},
	}

	resp, err := o.API.Execute(ctx, Request{Method: http.MethodPost, Path: "/" + in.Kind.ResourceType, Body: body})
	if err != nil {
		return nil, "", phaseFailure("reserve", err)
	}

	var res reservation
	if err := resp.Decode(&res); err != nil {
		return nil, "", phaseFailure("reserve", err)
	}
	if strings.TrimSpace(res.Data.ID) == "" {
		return nil, "", core.NewFailure(core.KindUpload, "reservation returned no asset id")
	}
	if len(res.Data.Attributes.UploadOperations) == 0 {
		return nil, "", core.NewFailure(core.KindUpload, "reservation returned no upload operations")
	}
	return res.Data.Attributes.UploadOperations, res.Data.ID, nil
}

// transfer sends one byte range without the API credential.
func (o *Orchestrator) transfer(ctx context.Context, payload []byte, op core.UploadOperation) error {
	timeout := o.PartTimeout
	if timeout <= 0 {
		timeout = DefaultPartTimeout
	}
	partCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := strings.ToUpper(strings.TrimSpace(op.Method))
	if method == "" {
		method = http.MethodPut
	}

	chunk := payload[op.Offset : op.Offset+op.Length]
	req, err := http.NewRequestWithContext(partCtx, method, op.URL, bytes.NewReader(chunk))
	if err != nil {
		return core.WrapFailure(core.KindUpload, err, "build upload request")
	}
	req.ContentLength = op.Length
	for _, header := range op.RequestHeaders {
		req.Header.Set(header.Name, header.Value)
	}

	resp, err := o.client().Do(req)
	if err != nil {
		metrics.RecordUploadPart(0, op.Length)
		return core.WrapFailure(core.KindUpload, err, fmt.Sprintf("transfer bytes [%d,%d)", op.Offset, op.Offset+op.Length))
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body
	_, _ = io.Copy(io.Discard, resp.Body)
	metrics.RecordUploadPart(resp.StatusCode, op.Length)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		failure := core.Failuref(core.KindUpload, "transfer bytes [%d,%d) returned status %d", op.Offset, op.Offset+op.Length, resp.StatusCode)
		failure.Status = resp.StatusCode
		return failure
	}
	return nil
}

func (o *Orchestrator) commit(ctx context.Context, kind core.AssetKind, assetID, checksum string) (*core.Resource, error) {
	body := map[string]any{
		"data": map[string]any{
			"type": kind.ResourceType,
			"id":   assetID,
			"attributes": map[string]any{
				"uploaded":           true,
				"sourceFileChecksum": checksum,
			},
		},
	}

	resp, err := o.API.Execute(ctx, Request{Method: http.MethodPatch, Path: "/" + kind.ResourceType + "/" + assetID, Body: body})
	if err != nil {
		return nil, phaseFailure("commit", err)
	}

	var doc core.Document
	if err := resp.Decode(&doc); err != nil {
		return nil, phaseFailure("commit", err)
	}
	return &doc.Data, nil
}

// phaseFailure reports err as an upload failure, keeping the remote status.
func phaseFailure(phase string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	failure := core.WrapFailure(core.KindUpload, err, phase+" failed")
	var inner *core.Failure
	if errors.As(err, &inner) {
		failure.Status = inner.Status
		failure.Code = inner.Code
	}
	return failure
}

func (o *Orchestrator) fail(ctx context.Context, record *core.UploadRecord, err error) error {
	record.State = core.UploadStateFailed
	record.Error = core.Redact(err.Error())
	o.save(ctx, record)
	metrics.RecordUpload(record.Kind, string(core.UploadStateFailed))
	return err
}

func (o *Orchestrator) save(ctx context.Context, record *core.UploadRecord) {
	if o.Journal == nil {
		return
	}
	record.UpdatedAt = o.now()
	if err := o.Journal.SaveUpload(context.WithoutCancel(ctx), record); err != nil {
		core.LoggerOrNop(o.Logger).Warn("Failed to journal upload",
			zap.String("upload_id", record.ID),
			zap.Error(err))
	}
}

func (o *Orchestrator) client() *http.Client {
	if o.Transfer != nil {
		return o.Transfer
	}
	return http.DefaultClient
}

func (o *Orchestrator) now() time.Time {
	if o != nil && o.Clock != nil {
		return o.Clock()
	}
	return time.Now().UTC()
}
