package core

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeRecorder struct {
	mu   sync.Mutex
	runs []RunSummary
	err  error
}

func (f *fakeRecorder) RecordRun(_ context.Context, run RunSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return f.err
}

func (f *fakeRecorder) last(t *testing.T) RunSummary {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.runs) == 0 {
		t.Fatal("no run recorded")
	}
	return f.runs[len(f.runs)-1]
}

type fakeObserver struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (f *fakeObserver) ObserveRun(run RunSummary) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, run.Outcome)
}

func csvUpload(name, contentType, body string) Upload {
	return Upload{
		FileName:    name,
		ContentType: contentType,
		Size:        int64(len(body)),
		Body:        strings.NewReader(body),
	}
}

func TestService_CleanUpload_Success(t *testing.T) {
	rec := &fakeRecorder{}
	obs := &fakeObserver{}
	svc := NewService(Options{Recorder: rec, Observer: obs})

	body := "Name,Age\n Alice ,30\nAlice,30\nBob, 25\n"
	result, err := svc.CleanUpload(context.Background(), csvUpload("people.csv", "text/csv", body))
	if err != nil {
		t.Fatalf("CleanUpload: %v", err)
	}

	if result.Message != MessageSuccess {
		t.Errorf("Message = %q, want %q", result.Message, MessageSuccess)
	}
	if result.RunID == "" {
		t.Error("RunID is empty")
	}
	if !reflect.DeepEqual(result.Table.Headers, []string{"Name", "Age"}) {
		t.Errorf("Headers = %q", result.Table.Headers)
	}
	want := []Row{{"Alice", "30"}, {"Bob", "25"}}
	if !reflect.DeepEqual(result.Table.Rows, want) {
		t.Errorf("Rows = %q, want %q", result.Table.Rows, want)
	}

	run := rec.last(t)
	if run.ID != result.RunID {
		t.Errorf("recorded ID = %q, want %q", run.ID, result.RunID)
	}
	if run.Outcome != OutcomeSuccess || run.ErrorCode != "" {
		t.Errorf("recorded outcome = %q code = %q", run.Outcome, run.ErrorCode)
	}
	if run.InputRows != 3 || run.OutputRows != 2 || run.Duplicates != 1 {
		t.Errorf("recorded counts = %d/%d/%d, want 3/2/1", run.InputRows, run.OutputRows, run.Duplicates)
	}
	if run.SizeBytes != int64(len(body)) {
		t.Errorf("recorded size = %d, want %d", run.SizeBytes, len(body))
	}
	if len(obs.outcomes) != 1 || obs.outcomes[0] != OutcomeSuccess {
		t.Errorf("observer saw %v", obs.outcomes)
	}
}

func TestService_CleanUpload_TxtNameWithCSVType(t *testing.T) {
	svc := NewService(Options{})

	result, err := svc.CleanUpload(context.Background(), csvUpload("data.txt", "text/csv", "A,B\n1,2\n"))
	if err != nil {
		t.Fatalf("CleanUpload: %v", err)
	}
	if len(result.Table.Rows) != 1 {
		t.Errorf("Rows = %q, want one row", result.Table.Rows)
	}
}

func TestService_CleanUpload_UnknownSizeCountsBytes(t *testing.T) {
	rec := &fakeRecorder{}
	svc := NewService(Options{Recorder: rec})

	body := "A\n1\n"
	up := csvUpload("a.csv", "text/csv", body)
	up.Size = -1

	if _, err := svc.CleanUpload(context.Background(), up); err != nil {
		t.Fatalf("CleanUpload: %v", err)
	}
	if got := rec.last(t).SizeBytes; got != int64(len(body)) {
		t.Errorf("SizeBytes = %d, want %d", got, len(body))
	}
}

func TestService_CleanUpload_GenericTypeWithCSVName(t *testing.T) {
	svc := NewService(Options{})

	result, err := svc.CleanUpload(context.Background(),
		csvUpload("people.csv", "application/octet-stream", "Name,Age\nAlice,30\nBob,25\n"))
	if err != nil {
		t.Fatalf("CleanUpload: %v", err)
	}
	if len(result.Table.Rows) != 2 {
		t.Errorf("Rows = %q, want two rows", result.Table.Rows)
	}
}

func TestService_CleanUpload_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		upload     Upload
		wantReason error
		wantCode   string
	}{
		{
			name:       "no file",
			upload:     Upload{FileName: "", Size: 0},
			wantReason: ErrNoFile,
			wantCode:   "FILE004",
		},
		{
			name:       "zero bytes",
			upload:     csvUpload("empty.csv", "text/csv", ""),
			wantReason: ErrEmptyFile,
			wantCode:   "FILE005",
		},
		{
			name: "unknown size but empty body",
			upload: Upload{
				FileName:    "empty.csv",
				ContentType: "text/csv",
				Size:        -1,
				Body:        strings.NewReader(""),
			},
			wantReason: ErrEmptyFile,
			wantCode:   "FILE005",
		},
		{
			name:       "not csv",
			upload:     csvUpload("photo.png", "image/png", "\x89PNG\r\n\x1a\n"),
			wantReason: ErrNotCSV,
			wantCode:   "FILE003",
		},
		{
			name:       "text with generic type and no csv name",
			upload:     csvUpload("data.bin", "application/octet-stream", "Name,Age\nAlice,30\n"),
			wantReason: ErrNotCSV,
			wantCode:   "FILE003",
		},
		{
			name:       "text without type or csv name",
			upload:     csvUpload("data.bin", "", "Name,Age\nAlice,30\n"),
			wantReason: ErrNotCSV,
			wantCode:   "FILE003",
		},
		{
			name:       "csv name with binary content",
			upload:     csvUpload("photo.csv", "application/octet-stream", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"),
			wantReason: ErrNotCSV,
			wantCode:   "FILE003",
		},
		{
			name:       "binary without type",
			upload:     csvUpload("blob", "", "\x00\x01\x02\x03\x04\x05"),
			wantReason: ErrNotCSV,
			wantCode:   "FILE003",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecorder{}
			svc := NewService(Options{Recorder: rec})

			result, err := svc.CleanUpload(context.Background(), tt.upload)
			if result != nil {
				t.Errorf("result = %+v, want nil", result)
			}
			if !errors.Is(err, ErrInvalidUpload) {
				t.Errorf("err = %v, want ErrInvalidUpload", err)
			}
			if !errors.Is(err, tt.wantReason) {
				t.Errorf("err = %v, want reason %v", err, tt.wantReason)
			}

			run := rec.last(t)
			if run.Outcome != OutcomeRejected {
				t.Errorf("Outcome = %q, want rejected", run.Outcome)
			}
			if run.ErrorCode != tt.wantCode {
				t.Errorf("ErrorCode = %q, want %q", run.ErrorCode, tt.wantCode)
			}
			if run.InputRows != 0 || run.OutputRows != 0 {
				t.Errorf("rejected run has rows: %+v", run)
			}
		})
	}
}

func TestService_CleanUpload_ParseFailure(t *testing.T) {
	rec := &fakeRecorder{}
	svc := NewService(Options{Recorder: rec})

	_, err := svc.CleanUpload(context.Background(), csvUpload("bad.csv", "text/csv", "A,,C\n1,2,3\n"))
	if !errors.Is(err, ErrReadOrParse) {
		t.Fatalf("err = %v, want ErrReadOrParse", err)
	}
	if errors.Is(err, ErrInvalidUpload) {
		t.Errorf("parse failure should not be a rejection: %v", err)
	}
	if run := rec.last(t); run.Outcome != OutcomeFailed || run.ErrorCode != "FILE002" {
		t.Errorf("recorded outcome = %q code = %q", run.Outcome, run.ErrorCode)
	}
}

func TestService_CleanUpload_MalformedQuotes(t *testing.T) {
	rec := &fakeRecorder{}
	svc := NewService(Options{Recorder: rec})

	result, err := svc.CleanUpload(context.Background(),
		csvUpload("bad.csv", "text/csv", "A,B\n\"x,1\n2,3\n4,5\n"))
	if result != nil {
		t.Errorf("result = %+v, want nil", result)
	}
	if !errors.Is(err, ErrReadOrParse) {
		t.Fatalf("err = %v, want ErrReadOrParse", err)
	}
	if run := rec.last(t); run.Outcome != OutcomeFailed || run.InputRows != 0 {
		t.Errorf("recorded outcome = %q rows = %d", run.Outcome, run.InputRows)
	}
}

func TestService_CleanUpload_Busy(t *testing.T) {
	svc := NewService(Options{MaxConcurrent: 1, MaxWaitTime: 20 * time.Millisecond})

	if !svc.limiter.TryAcquire() {
		t.Fatal("TryAcquire failed")
	}
	defer svc.limiter.Release()

	_, err := svc.CleanUpload(context.Background(), csvUpload("a.csv", "text/csv", "A\n1\n"))
	if !errors.Is(err, ErrTooManyUploads) {
		t.Errorf("err = %v, want ErrTooManyUploads", err)
	}
	if status := svc.UploadLimiterStatus(); status.Active != 1 {
		t.Errorf("Active = %d, want 1 after failed run", status.Active)
	}
}

func TestService_CleanUpload_Cancelled(t *testing.T) {
	svc := NewService(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.CleanUpload(ctx, csvUpload("a.csv", "text/csv", "A\n1\n"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if svc.UploadLimiterStatus().Active != 0 {
		t.Error("slot leaked after cancelled run")
	}
}

func TestService_RecorderFailureIgnored(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("db down")}
	svc := NewService(Options{Recorder: rec})

	result, err := svc.CleanUpload(context.Background(), csvUpload("a.csv", "text/csv", "A\n1\n"))
	if err != nil {
		t.Fatalf("recorder failure leaked into result: %v", err)
	}
	if result.Message != MessageSuccess {
		t.Errorf("Message = %q", result.Message)
	}
}

func TestService_WaitForUploads_Idle(t *testing.T) {
	svc := NewService(Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := svc.WaitForUploads(ctx); err != nil {
		t.Errorf("WaitForUploads = %v, want nil", err)
	}
}
