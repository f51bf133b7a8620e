// Package vpx registers libvpx backed VP8 and VP9 encoders for recordings.
// Building it requires the libvpx headers and libraries.
package vpx

// #cgo pkg-config: vpx
// #include <stdlib.h>
// #include <vpx/vpx_encoder.h>
// #include <vpx/vpx_image.h>
// #include <vpx/vp8cx.h>
//
// // C function pointers
// vpx_codec_iface_t *ifaceVP8() {
//   return vpx_codec_vp8_cx();
// }
// vpx_codec_iface_t *ifaceVP9() {
//   return vpx_codec_vp9_cx();
// }
//
// // C union helpers
// void *pktBuf(vpx_codec_cx_pkt_t *pkt) {
//   return pkt->data.frame.buf;
// }
// int pktSz(vpx_codec_cx_pkt_t *pkt) {
//   return pkt->data.frame.sz;
// }
//
// // Alloc helpers
// vpx_codec_ctx_t *newCtx() {
//   return malloc(sizeof(vpx_codec_ctx_t));
// }
// vpx_image_t *newImage() {
//   return malloc(sizeof(vpx_image_t));
// }
//
// // The planes point into Go memory only for the duration of the call.
// vpx_codec_err_t encode_planes(
//     vpx_codec_ctx_t* codec, vpx_image_t* raw,
//     long t, unsigned long dt, long flags, unsigned long deadline,
//     unsigned char *y_ptr, unsigned char *cb_ptr, unsigned char *cr_ptr) {
//   raw->planes[0] = y_ptr;
//   raw->planes[1] = cb_ptr;
//   raw->planes[2] = cr_ptr;
//   vpx_codec_err_t ret = vpx_codec_encode(codec, raw, t, dt, flags, deadline);
//   raw->planes[0] = raw->planes[1] = raw->planes[2] = 0;
//   return ret;
// }
import "C"

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"unsafe"

	"github.com/pion/webrtc/v4"

	"github.com/pion/cameraview/pkg/codec"
	"github.com/pion/cameraview/pkg/io/video"
)

const (
	defaultBitRate = 1000000
	defaultFPS     = 30
	// keyFrameSeconds is the default distance between key frames.
	keyFrameSeconds = 2
)

// ErrClosed is returned by Encode after Close.
var ErrClosed = errors.New("vpx: encoder closed")

func init() {
	codec.Register(webrtc.MimeTypeVP8, codec.VideoEncoderBuilder(NewVP8Encoder))
	codec.Register(webrtc.MimeTypeVP9, codec.VideoEncoderBuilder(NewVP9Encoder))
}

// NewVP8Encoder creates a VP8 encoder.
func NewVP8Encoder(s codec.VideoSetting) (codec.VideoEncoder, error) {
	e, err := newEncoder(s, C.ifaceVP8())
	if err != nil {
		return nil, err
	}
	return e, nil
}

// NewVP9Encoder creates a VP9 encoder.
func NewVP9Encoder(s codec.VideoSetting) (codec.VideoEncoder, error) {
	e, err := newEncoder(s, C.ifaceVP9())
	if err != nil {
		return nil, err
	}
	return e, nil
}

// encoder stamps frames with their index at the nominal frame rate, so the
// recorded clip plays at that rate whatever the capture jitter was.
type encoder struct {
	mu sync.Mutex

	ctx *C.vpx_codec_ctx_t
	img *C.vpx_image_t
	cfg *C.vpx_codec_enc_cfg_t

	pts         C.long
	keyInterval int
	sinceKey    int
	forceKey    bool
	out         []byte
	closed      bool
}

func newEncoder(s codec.VideoSetting, iface *C.vpx_codec_iface_t) (*encoder, error) {
	if s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("vpx: invalid frame size %dx%d", s.Width, s.Height)
	}
	if s.TargetBitRate <= 0 {
		s.TargetBitRate = defaultBitRate
	}
	fps := int(math.Round(float64(s.FrameRate)))
	if fps <= 0 {
		fps = defaultFPS
	}
	if s.KeyFrameInterval <= 0 {
		s.KeyFrameInterval = fps * keyFrameSeconds
	}

	cfg := &C.vpx_codec_enc_cfg_t{}
	if ec := C.vpx_codec_enc_config_default(iface, cfg, 0); ec != C.VPX_CODEC_OK {
		return nil, fmt.Errorf("vpx: default config: error %d", ec)
	}
	cfg.g_w, cfg.g_h = C.uint(s.Width), C.uint(s.Height)
	cfg.g_timebase.num, cfg.g_timebase.den = 1, C.int(fps)
	cfg.g_pass = C.VPX_RC_ONE_PASS
	cfg.rc_target_bitrate = C.uint(s.TargetBitRate / 1000)
	cfg.rc_resize_allowed = 0
	cfg.kf_max_dist = C.uint(s.KeyFrameInterval)

	// Only the image geometry is kept; the planes are set per frame.
	planes := &C.vpx_image_t{}
	if C.vpx_img_alloc(planes, C.VPX_IMG_FMT_I420, cfg.g_w, cfg.g_h, 1) == nil {
		return nil, errors.New("vpx: failed to allocate image")
	}
	img := C.newImage()
	*img = *planes
	C.vpx_img_free(planes)

	ctx := C.newCtx()
	if ec := C.vpx_codec_enc_init_ver(ctx, iface, cfg, 0, C.VPX_ENCODER_ABI_VERSION); ec != C.VPX_CODEC_OK {
		C.free(unsafe.Pointer(img))
		C.free(unsafe.Pointer(ctx))
		return nil, fmt.Errorf("vpx: init: error %d", ec)
	}

	return &encoder{
		ctx:         ctx,
		img:         img,
		cfg:         cfg,
		keyInterval: s.KeyFrameInterval,
		forceKey:    true,
		out:         make([]byte, 0, 4096),
	}, nil
}

// Encode compresses one frame. A size change reconfigures the encoder and
// starts with a key frame.
func (e *encoder) Encode(src image.Image) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}

	yuv := video.ToI420(src)
	w, h := C.uint(yuv.Rect.Dx()), C.uint(yuv.Rect.Dy())
	if w != e.cfg.g_w || h != e.cfg.g_h {
		if err := e.resize(w, h); err != nil {
			return nil, err
		}
	}
	e.img.stride[0] = C.int(yuv.YStride)
	e.img.stride[1] = C.int(yuv.CStride)
	e.img.stride[2] = C.int(yuv.CStride)

	var flags int
	if e.forceKey || e.sinceKey >= e.keyInterval {
		flags |= C.VPX_EFLAG_FORCE_KF
		e.forceKey, e.sinceKey = false, 0
	}

	ec := C.encode_planes(
		e.ctx, e.img, e.pts, 1, C.long(flags), C.VPX_DL_REALTIME,
		(*C.uchar)(&yuv.Y[0]), (*C.uchar)(&yuv.Cb[0]), (*C.uchar)(&yuv.Cr[0]),
	)
	if ec != C.VPX_CODEC_OK {
		return nil, fmt.Errorf("vpx: encode frame %d: error %d", e.pts, ec)
	}
	e.pts++
	e.sinceKey++

	e.out = e.out[:0]
	var iter C.vpx_codec_iter_t
	for pkt := C.vpx_codec_get_cx_data(e.ctx, &iter); pkt != nil; pkt = C.vpx_codec_get_cx_data(e.ctx, &iter) {
		if pkt.kind != C.VPX_CODEC_CX_FRAME_PKT {
			continue
		}
		e.out = append(e.out, C.GoBytes(C.pktBuf(pkt), C.pktSz(pkt))...)
	}
	return append([]byte(nil), e.out...), nil
}

func (e *encoder) resize(w, h C.uint) error {
	e.cfg.g_w, e.cfg.g_h = w, h
	if ec := C.vpx_codec_enc_config_set(e.ctx, e.cfg); ec != C.VPX_CODEC_OK {
		return fmt.Errorf("vpx: resize to %dx%d: error %d", w, h, ec)
	}
	e.img.w, e.img.h = w, h
	e.img.r_w, e.img.r_h = w, h
	e.img.d_w, e.img.d_h = w, h
	e.forceKey = true
	return nil
}

// Close releases the encoder. It is safe to call more than once.
func (e *encoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	C.free(unsafe.Pointer(e.img))
	defer C.free(unsafe.Pointer(e.ctx))
	if ec := C.vpx_codec_destroy(e.ctx); ec != C.VPX_CODEC_OK {
		return fmt.Errorf("vpx: destroy: error %d", ec)
	}
	return nil
}
