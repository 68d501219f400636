package streaming

import (
	"context"
	"errors"
	"testing"
	"time"
)

func drain(t *testing.T, out <-chan Frame, timeout time.Duration) []Frame {
	t.Helper()
	var got []Frame
	deadline := time.After(timeout)
	for {
		select {
		case f, ok := <-out:
			if !ok {
				return got
			}
			got = append(got, f)
		case <-deadline:
			t.Fatal("timed out draining frames")
			return nil
		}
	}
}

func TestWrapFirstChunkPassesThroughGoodData(t *testing.T) {
	src := make(chan Frame, 4)
	src <- Frame{Line: "data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\n"}
	src <- Frame{Line: "data: [DONE]\n\n"}
	close(src)

	out, err := WrapFirstChunk(context.Background(), src, "chat", true, []string{"insufficient_quota"})
	if err != nil {
		t.Fatalf("WrapFirstChunk: %v", err)
	}

	got := drain(t, out, time.Second)
	if len(got) != 2 {
		t.Fatalf("got %d frames, want 2: %+v", len(got), got)
	}
}

func TestWrapFirstChunkForwardsLeadingHeartbeats(t *testing.T) {
	src := make(chan Frame, 4)
	src <- Frame{Line: heartbeatLine}
	src <- Frame{Line: "data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\n"}
	close(src)

	out, err := WrapFirstChunk(context.Background(), src, "chat", true, nil)
	if err != nil {
		t.Fatalf("WrapFirstChunk: %v", err)
	}
	got := drain(t, out, time.Second)
	if len(got) != 2 || !got[0].IsHeartbeat() {
		t.Fatalf("got = %+v", got)
	}
}

func TestWrapFirstChunkDetectsDoneAsFirstFrame(t *testing.T) {
	src := make(chan Frame, 1)
	src <- Frame{Line: "data: [DONE]\n\n"}
	close(src)

	_, err := WrapFirstChunk(context.Background(), src, "chat", true, nil)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestWrapFirstChunkDetectsErrorTrigger(t *testing.T) {
	src := make(chan Frame, 1)
	src <- Frame{Line: "data: {\"error\":\"insufficient_quota exceeded\"}\n\n"}
	close(src)

	_, err := WrapFirstChunk(context.Background(), src, "chat", true, []string{"insufficient_quota"})
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestWrapFirstChunkDetectsPopulatedError(t *testing.T) {
	src := make(chan Frame, 1)
	src <- Frame{Line: `data: {"error": {"message": "bad request", "type": "invalid_request_error", "param": null, "code": "400"}, "status_code": 400, "details": "bad request"}` + "\n\n"}
	close(src)

	_, err := WrapFirstChunk(context.Background(), src, "chat", true, nil)
	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("err = %v, want *UpstreamError", err)
	}
	if upstreamErr.StatusCode != 400 || upstreamErr.Detail != "bad request" {
		t.Fatalf("upstreamErr = %+v", upstreamErr)
	}
}

func TestWrapFirstChunkIgnoresEmptyErrorSentinel(t *testing.T) {
	src := make(chan Frame, 2)
	src <- Frame{Line: `data: {"error": {"message": "", "type": "", "param": null, "code": null}, "choices":[{"message":{"content":"ok"}}]}` + "\n\n"}
	src <- Frame{Line: "data: [DONE]\n\n"}
	close(src)

	_, err := WrapFirstChunk(context.Background(), src, "chat", false, nil)
	if err != nil {
		t.Fatalf("WrapFirstChunk: %v, want nil (sentinel error should be ignored)", err)
	}
}

func TestWrapFirstChunkDetectsEmptyMessageContentNonStream(t *testing.T) {
	src := make(chan Frame, 1)
	src <- Frame{Line: `data: {"choices":[{"message":{"content":""}}]}` + "\n\n"}
	close(src)

	_, err := WrapFirstChunk(context.Background(), src, "chat", false, nil)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestWrapFirstChunkSkipsEmptyContentCheckForSpecialEngines(t *testing.T) {
	src := make(chan Frame, 2)
	src <- Frame{Line: `data: {"choices":[{"message":{"content":""}}]}` + "\n\n"}
	src <- Frame{Line: "data: [DONE]\n\n"}
	close(src)

	_, err := WrapFirstChunk(context.Background(), src, "tts", false, nil)
	if err != nil {
		t.Fatalf("WrapFirstChunk: %v, want nil for special engine", err)
	}
}

func TestWrapFirstChunkAudioPassthrough(t *testing.T) {
	src := make(chan Frame, 2)
	mp3 := []byte{0xFF, 0xFB, 0x90, 0x00, 0x01, 0x02}
	src <- Frame{Audio: mp3}
	close(src)

	out, err := WrapFirstChunk(context.Background(), src, "tts", false, nil)
	if err != nil {
		t.Fatalf("WrapFirstChunk: %v", err)
	}
	got := drain(t, out, time.Second)
	if len(got) != 1 || !got[0].IsAudio() {
		t.Fatalf("got = %+v", got)
	}
}
