package telegram

import (
	"testing"

	"github.com/mymmrac/telego"

	"github.com/liveline-bot/liveline/internal/bus"
)

func TestExtractMedia(t *testing.T) {
	tests := []struct {
		name string
		msg  *telego.Message
		want []bus.MediaAttachment
	}{
		{
			name: "text only",
			msg:  &telego.Message{Text: "hello"},
			want: nil,
		},
		{
			name: "photo picks highest resolution",
			msg: &telego.Message{Photo: []telego.PhotoSize{
				{FileID: "small"}, {FileID: "medium"}, {FileID: "large"},
			}},
			want: []bus.MediaAttachment{{FileRef: "large", Kind: "photo"}},
		},
		{
			name: "voice note keeps its kind",
			msg:  &telego.Message{Voice: &telego.Voice{FileID: "v-1"}},
			want: []bus.MediaAttachment{{FileRef: "v-1", Kind: "voice"}},
		},
		{
			name: "video",
			msg:  &telego.Message{Video: &telego.Video{FileID: "vid-1"}},
			want: []bus.MediaAttachment{{FileRef: "vid-1", Kind: "video"}},
		},
		{
			name: "document with photo",
			msg: &telego.Message{
				Photo:    []telego.PhotoSize{{FileID: "p-1"}},
				Document: &telego.Document{FileID: "d-1"},
			},
			want: []bus.MediaAttachment{
				{FileRef: "p-1", Kind: "photo"},
				{FileRef: "d-1", Kind: "document"},
			},
		},
		{
			name: "sticker",
			msg:  &telego.Message{Sticker: &telego.Sticker{FileID: "s-1"}},
			want: []bus.MediaAttachment{{FileRef: "s-1", Kind: "sticker"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractMedia(tt.msg)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestParseChatID(t *testing.T) {
	if id, err := parseChatID("123456"); err != nil || id != 123456 {
		t.Errorf("parseChatID(123456) = (%d, %v)", id, err)
	}
	if id, err := parseChatID("-100987"); err != nil || id != -100987 {
		t.Errorf("parseChatID(-100987) = (%d, %v)", id, err)
	}
	if _, err := parseChatID("abc"); err == nil {
		t.Error("expected error for non-numeric chat ID")
	}
}
