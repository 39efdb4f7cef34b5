package blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, prefix string, handler http.HandlerFunc) Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := New(Config{
		Endpoint:  server.URL,
		Region:    "eu-west-2",
		AccessKey: "archive-access",
		SecretKey: "archive-secret",
		Bucket:    "vault",
		Prefix:    prefix,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestHeadReturnsObjectMetadata(t *testing.T) {
	var gotPath, gotAuth string
	client := newTestClient(t, "archive", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Length", "2048")
		w.WriteHeader(http.StatusOK)
	})

	info, ok, err := client.Head(context.Background(), "courtroom-7/seg0.mp4")
	if err != nil || !ok {
		t.Fatalf("Head: ok=%v err=%v", ok, err)
	}
	if gotPath != "/vault/archive/courtroom-7/seg0.mp4" {
		t.Fatalf("request path = %q", gotPath)
	}
	if info.SizeBytes != 2048 || info.ContentType != "video/mp4" {
		t.Fatalf("info = %+v", info)
	}
	if !strings.HasPrefix(gotAuth, "AWS4-HMAC-SHA256 Credential=archive-access/") {
		t.Fatalf("authorization header = %q", gotAuth)
	}
	if !strings.Contains(gotAuth, "x-amz-content-sha256") || !strings.Contains(gotAuth, "x-amz-date") {
		t.Fatalf("signed headers missing from %q", gotAuth)
	}
}

func TestHeadMissingObject(t *testing.T) {
	client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, ok, err := client.Head(context.Background(), "courtroom-7/absent.mp4")
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if ok {
		t.Fatal("absent object reported as present")
	}
}

func TestGetRangeSendsRangeHeader(t *testing.T) {
	payload := []byte("0123456789")
	client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		rangeHeader := r.Header.Get("Range")
		if rangeHeader != "bytes=2-5" {
			t.Errorf("Range header = %q", rangeHeader)
		}
		w.Header().Set("Content-Length", strconv.Itoa(4))
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(payload[2:6])
	})

	body, err := client.GetRange(context.Background(), "courtroom-7/seg0.mp4", 2, 5)
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	defer func() {
		_ = body.Close()
	}()
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(data) != "2345" {
		t.Fatalf("body = %q", data)
	}
}

func TestGetRangeRejectsInvalidSpan(t *testing.T) {
	client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an invalid span")
	})

	if _, err := client.GetRange(context.Background(), "key", 5, 2); err == nil {
		t.Fatal("inverted span must fail")
	}
	if _, err := client.GetRange(context.Background(), "key", -1, 2); err == nil {
		t.Fatal("negative start must fail")
	}
}

func TestStartCopyReturnsCopyID(t *testing.T) {
	client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s", r.Method)
		}
		if src := r.Header.Get("x-amz-copy-source"); src != "https://source/courtroom-7/seg0.mp4?sig=abc" {
			t.Errorf("copy source = %q", src)
		}
		w.Header().Set("x-amz-copy-id", "copy-42")
		w.WriteHeader(http.StatusAccepted)
	})

	copyID, err := client.StartCopy(context.Background(), "courtroom-7/seg0.mp4", "https://source/courtroom-7/seg0.mp4?sig=abc")
	if err != nil {
		t.Fatalf("StartCopy: %v", err)
	}
	if copyID != "copy-42" {
		t.Fatalf("copy id = %q", copyID)
	}
}

func TestCopyStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		header string
		want   CopyState
	}{
		{"pending", http.StatusOK, "pending", CopyPending},
		{"failed", http.StatusOK, "failed", CopyFailed},
		{"aborted", http.StatusOK, "aborted", CopyFailed},
		{"committed", http.StatusOK, "", CopySuccess},
		{"gone", http.StatusNotFound, "", CopyFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("x-amz-copy-id"); got != "copy-42" {
					t.Errorf("copy id header = %q", got)
				}
				if tc.header != "" {
					w.Header().Set("x-amz-copy-status", tc.header)
				}
				w.WriteHeader(tc.status)
			})
			state, err := client.CopyStatus(context.Background(), "courtroom-7/seg0.mp4", "copy-42")
			if err != nil {
				t.Fatalf("CopyStatus: %v", err)
			}
			if state != tc.want {
				t.Fatalf("state = %q, want %q", state, tc.want)
			}
		})
	}
}

func TestAbortCopyCarriesCopyID(t *testing.T) {
	client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		if got := r.URL.Query().Get("copyId"); got != "copy-42" {
			t.Errorf("copyId query = %q", got)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := client.AbortCopy(context.Background(), "courtroom-7/seg0.mp4", "copy-42"); err != nil {
		t.Fatalf("AbortCopy: %v", err)
	}
}

func TestDeleteTreatsMissingAsSuccess(t *testing.T) {
	client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	if err := client.Delete(context.Background(), "courtroom-7/absent.mp4"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	failing := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	if err := failing.Delete(context.Background(), "courtroom-7/seg0.mp4"); err == nil {
		t.Fatal("server failure must propagate")
	}
}

func TestNewRequiresEndpointAndBucket(t *testing.T) {
	if _, err := New(Config{Bucket: "vault"}); err == nil {
		t.Fatal("missing endpoint must fail")
	}
	if _, err := New(Config{Endpoint: "http://127.0.0.1:9000"}); err == nil {
		t.Fatal("missing bucket must fail")
	}
}

func TestObjectKeyNormalizesComponents(t *testing.T) {
	if got := ObjectKey(" /courtroom-7/ ", "/seg0.mp4"); got != "courtroom-7/seg0.mp4" {
		t.Fatalf("key = %q", got)
	}
	// Decomposed and precomposed forms of the same name map to one key.
	decomposed := "se\u0301ance.mp4"
	precomposed := "s\u00e9ance.mp4"
	if ObjectKey("salle-3", decomposed) != ObjectKey("salle-3", precomposed) {
		t.Fatal("unicode forms must normalize to the same key")
	}
}

func TestApplyPrefixDoesNotDoublePrefix(t *testing.T) {
	var gotPath string
	client := newTestClient(t, "archive", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	})

	if _, _, err := client.Head(context.Background(), "archive/courtroom-7/seg0.mp4"); err != nil {
		t.Fatalf("Head: %v", err)
	}
	if gotPath != "/vault/archive/courtroom-7/seg0.mp4" {
		t.Fatalf("request path = %q", gotPath)
	}
}
