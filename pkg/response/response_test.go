// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package response

import (
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type fakeResult struct {
	okStatus  int
	errStatus int
	okErr     error
	errErr    error
	header    http.Header
	nilResp   bool
}

func (f fakeResult) build(status int, err error) (*Response, error) {
	if err != nil {
		return nil, err
	}
	if f.nilResp {
		return nil, nil
	}
	resp := New(status)
	for k, vv := range f.header {
		resp.Header[k] = vv
	}
	resp.Body = []byte("body")
	return resp, nil
}

func (f fakeResult) ResolveOK(*http.Request) (*Response, error) {
	return f.build(f.okStatus, f.okErr)
}

func (f fakeResult) ResolveErr(*http.Request) (*Response, error) {
	return f.build(f.errStatus, f.errErr)
}

func TestResolveAddsAPIVersionOnBothBranches(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v2/", nil)
	v := fakeResult{okStatus: http.StatusOK, errStatus: http.StatusNotFound}

	tests := []struct {
		name       string
		out        Outcome[fakeResult]
		wantStatus int
	}{
		{"success", Success(v), http.StatusOK},
		{"failure", Failure(v), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := Resolve(tt.out, req)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Fatalf("Status = %d, want %d", resp.Status, tt.wantStatus)
			}
			if got := resp.Header.Values(APIVersionHeader); !cmp.Equal(got, []string{APIVersion}) {
				t.Fatalf("%s = %q, want [%q]", APIVersionHeader, got, APIVersion)
			}
		})
	}
}

func TestResolveOverwritesExistingAPIVersion(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v2/", nil)
	h := http.Header{}
	h.Add(APIVersionHeader, "registry/1.0")
	h.Add(APIVersionHeader, "bogus")
	h.Set("X-Other", "kept")

	resp, err := Resolve(Success(fakeResult{okStatus: http.StatusOK, header: h}), req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := http.Header{"X-Other": {"kept"}}
	want.Set(APIVersionHeader, APIVersion)
	if diff := cmp.Diff(want, resp.Header); diff != "" {
		t.Fatalf("header mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveNilHeaderMap(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v2/", nil)
	r := responderFunc(func(*http.Request) (*Response, error) {
		return &Response{Status: http.StatusNoContent}, nil
	})
	resp, err := Resolve(Success(r), req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := resp.Header.Get(APIVersionHeader); got != APIVersion {
		t.Fatalf("%s = %q, want %q", APIVersionHeader, got, APIVersion)
	}
}

type responderFunc func(*http.Request) (*Response, error)

func (f responderFunc) ResolveOK(r *http.Request) (*Response, error)  { return f(r) }
func (f responderFunc) ResolveErr(r *http.Request) (*Response, error) { return f(r) }

func TestResolveDispatchFailure(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v2/", nil)
	boom := errors.New("boom")

	tests := []struct {
		name       string
		out        Outcome[fakeResult]
		wantStatus int
		wantErr    error
	}{
		{"ok branch plain error", Success(fakeResult{okErr: boom}), http.StatusInternalServerError, boom},
		{"err branch plain error", Failure(fakeResult{errErr: boom}), http.StatusInternalServerError, boom},
		{"dispatch error keeps status", Success(fakeResult{okErr: NewDispatchError(http.StatusBadGateway, boom)}), http.StatusBadGateway, boom},
		{"nil response", Failure(fakeResult{nilResp: true}), http.StatusInternalServerError, ErrNilResponse},
		{"zero outcome", Outcome[fakeResult]{}, http.StatusInternalServerError, ErrEmptyOutcome},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := Resolve(tt.out, req)
			if resp != nil {
				t.Fatalf("Resolve returned response %+v, want nil", resp)
			}
			var de *DispatchError
			if !errors.As(err, &de) {
				t.Fatalf("err = %v, want *DispatchError", err)
			}
			if got := StatusOf(err); got != tt.wantStatus {
				t.Fatalf("StatusOf = %d, want %d", got, tt.wantStatus)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want wrapping %v", err, tt.wantErr)
			}
		})
	}
}

func TestJSONEncodeFailureIsDispatchError(t *testing.T) {
	_, err := JSON(http.StatusOK, math.Inf(1))
	var de *DispatchError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want *DispatchError", err)
	}
}

func TestOutcomeKind(t *testing.T) {
	v := fakeResult{}
	if got := Success(v).Kind(); got != KindSuccess {
		t.Fatalf("Success.Kind = %v, want %v", got, KindSuccess)
	}
	if got := Failure(v).Kind(); got != KindFailure {
		t.Fatalf("Failure.Kind = %v, want %v", got, KindFailure)
	}
	if !Failure(v).Failed() || Success(v).Failed() {
		t.Fatalf("Failed() reports the wrong branch")
	}
	if got := (Outcome[fakeResult]{}).Kind(); got != KindDispatchFailure {
		t.Fatalf("zero Kind = %v, want %v", got, KindDispatchFailure)
	}
}

type recordedObservation struct {
	Kind   Kind
	Status int
	Err    bool
}

func TestHandlerWritesAndObserves(t *testing.T) {
	var got []recordedObservation
	obs := ObserverFunc(func(_ *http.Request, kind Kind, status int, err error) {
		got = append(got, recordedObservation{Kind: kind, Status: status, Err: err != nil})
	})

	tests := []struct {
		name       string
		out        Outcome[fakeResult]
		wantStatus int
		wantHeader bool
		wantBody   string
		want       recordedObservation
	}{
		{
			name:       "success",
			out:        Success(fakeResult{okStatus: http.StatusOK}),
			wantStatus: http.StatusOK,
			wantHeader: true,
			wantBody:   "body",
			want:       recordedObservation{Kind: KindSuccess, Status: http.StatusOK},
		},
		{
			name:       "domain failure",
			out:        Failure(fakeResult{errStatus: http.StatusNotFound}),
			wantStatus: http.StatusNotFound,
			wantHeader: true,
			wantBody:   "body",
			want:       recordedObservation{Kind: KindFailure, Status: http.StatusNotFound},
		},
		{
			name:       "dispatch failure",
			out:        Success(fakeResult{okErr: errors.New("encode")}),
			wantStatus: http.StatusInternalServerError,
			want:       recordedObservation{Kind: KindDispatchFailure, Status: http.StatusInternalServerError, Err: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = nil
			h := Handle(func(*http.Request) Outcome[fakeResult] { return tt.out }, WithObserver(obs))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v2/", nil))

			res := rec.Result()
			defer res.Body.Close()
			body, _ := io.ReadAll(res.Body)
			if res.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", res.StatusCode, tt.wantStatus)
			}
			if has := res.Header.Get(APIVersionHeader) != ""; has != tt.wantHeader {
				t.Fatalf("has %s = %v, want %v", APIVersionHeader, has, tt.wantHeader)
			}
			if string(body) != tt.wantBody {
				t.Fatalf("body = %q, want %q", body, tt.wantBody)
			}
			if diff := cmp.Diff([]recordedObservation{tt.want}, got); diff != "" {
				t.Fatalf("observations mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestObserversSkipsNil(t *testing.T) {
	n := 0
	count := ObserverFunc(func(*http.Request, Kind, int, error) { n++ })
	Observers(count, nil, count).Observe(nil, KindSuccess, http.StatusOK, nil)
	if n != 2 {
		t.Fatalf("calls = %d, want 2", n)
	}
}
