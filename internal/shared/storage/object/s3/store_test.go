package s3

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "uploads/upload_1/sheet.xlsx", want: "uploads/upload_1/sheet.xlsx"},
		{name: "simple prefix", prefix: "rowshare", key: "products/a.jpg", want: "rowshare/products/a.jpg"},
		{name: "prefix trailing slash", prefix: "rowshare/", key: "products/a.jpg", want: "rowshare/products/a.jpg"},
		{name: "prefix and key slashes", prefix: "/rowshare/", key: "/products/a.jpg", want: "rowshare/products/a.jpg"},
		{name: "empty key", prefix: "rowshare", key: "", want: "rowshare"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

func TestURLPresignsPrefixedKey(t *testing.T) {
	client := s3.New(s3.Options{
		Region:      "us-east-1",
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider("AKID", "SECRET", "")),
	})
	store := NewWithClient(client, "rowshare-bucket", "/assets/", "")

	raw, err := store.URL(context.Background(), "products/abc_photo.jpg")
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !strings.Contains(u.Host+u.Path, "rowshare-bucket") || !strings.HasSuffix(u.Path, "/assets/products/abc_photo.jpg") {
		t.Fatalf("unexpected presigned url %q", raw)
	}
	if u.Query().Get("X-Amz-Signature") == "" {
		t.Fatalf("expected signature in %q", raw)
	}
	if u.Query().Get("X-Amz-Expires") != "43200" {
		t.Fatalf("expected 12h expiry, got %q", u.Query().Get("X-Amz-Expires"))
	}
}
