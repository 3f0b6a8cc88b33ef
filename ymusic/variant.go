package ymusic

import (
	"context"
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/ymdl/cache"
	"github.com/xeptore/ymdl/config"
	"github.com/xeptore/ymdl/errutil"
)

// signSalt is the static salt of the storage link signature.
const signSalt = "XGRlBW9FXlekgbPrRHuSiA"

// Variant is one encoding a track can be downloaded in. The direct link is
// resolved lazily since it costs a request and expires quickly.
type Variant struct {
	Codec       string
	BitrateKbps int
	resolve     func(ctx context.Context) (string, error)
}

func NewVariant(codec string, bitrateKbps int, resolve func(ctx context.Context) (string, error)) Variant {
	return Variant{Codec: codec, BitrateKbps: bitrateKbps, resolve: resolve}
}

// ResolveLink returns the time limited direct transfer URL. An empty link
// is reported as ErrLinkUnavailable.
func (v Variant) ResolveLink(ctx context.Context) (string, error) {
	if nil == v.resolve {
		return "", ErrLinkUnavailable
	}
	link, err := v.resolve(ctx)
	if nil != err {
		return "", err
	}
	if link == "" {
		return "", ErrLinkUnavailable
	}
	return link, nil
}

func (v Variant) String() string {
	return fmt.Sprintf("%s@%dkbps", v.Codec, v.BitrateKbps)
}

type downloadInfoItem struct {
	Codec           string `json:"codec"`
	BitrateInKbps   int    `json:"bitrateInKbps"`
	DownloadInfoURL string `json:"downloadInfoUrl"`
	Preview         bool   `json:"preview"`
	Direct          bool   `json:"direct"`
}

// Variants lists the encodings available for trackID. Previews are left out.
func (c *Client) Variants(ctx context.Context, trackID TrackID) ([]Variant, error) {
	items, err := c.downloadInfo.Fetch(TrackKey(trackID), cache.DefaultDownloadInfoTTL, func() ([]downloadInfoItem, error) {
		return c.fetchDownloadInfo(ctx, trackID)
	})
	if nil != err {
		return nil, err
	}

	variants := make([]Variant, 0, len(items))
	for _, item := range items {
		if item.Preview {
			continue
		}
		variants = append(variants, NewVariant(strings.ToLower(item.Codec), item.BitrateInKbps, func(ctx context.Context) (string, error) {
			return c.directLink(ctx, item)
		}))
	}
	return variants, nil
}

func (c *Client) fetchDownloadInfo(ctx context.Context, trackID TrackID) ([]downloadInfoItem, error) {
	reqURL := c.endpoint("tracks", TrackKey(trackID), "download-info")
	flawP := flaw.P{"url": reqURL, "track_id": trackID}

	respBody, err := c.send(ctx, getRequest(reqURL), config.DownloadInfoRequestTimeout, c.authorized)
	if nil != err {
		return nil, classify(ctx, err, flawP)
	}

	items, err := decodeResult[[]downloadInfoItem](ctx, respBody)
	if nil != err {
		return nil, withFlawP(err, flawP)
	}
	return *items, nil
}

type downloadInfo struct {
	XMLName xml.Name `xml:"download-info"`
	Host    string   `xml:"host"`
	Path    string   `xml:"path"`
	TS      string   `xml:"ts"`
	Region  string   `xml:"region"`
	S       string   `xml:"s"`
}

func (c *Client) directLink(ctx context.Context, item downloadInfoItem) (string, error) {
	if item.DownloadInfoURL == "" {
		return "", ErrLinkUnavailable
	}
	flawP := flaw.P{"download_info_url": item.DownloadInfoURL, "codec": item.Codec}

	respBody, err := c.send(ctx, getRequest(item.DownloadInfoURL), config.DirectLinkRequestTimeout, c.anonymous)
	if nil != err {
		return "", classify(ctx, err, flawP)
	}

	var info downloadInfo
	if err := xml.Unmarshal(respBody, &info); nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		flawP["response_body"] = truncate(respBody, 2048)
		return "", flaw.From(fmt.Errorf("failed to unmarshal download info XML: %v", err)).Append(flawP)
	}
	return SignedLink(info.Host, info.Path, info.TS, info.S, item.Codec), nil
}

// SignedLink builds the storage URL for a download-info document. It returns
// an empty string when the document lacks a host or path.
func SignedLink(host, path, ts, s, codec string) string {
	if host == "" || path == "" {
		return ""
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	sum := md5.Sum([]byte(signSalt + path[1:] + s)) //nolint:gosec
	return "https://" + host + "/get-" + strings.ToLower(codec) + "/" + hex.EncodeToString(sum[:]) + "/" + ts + path
}
