package recorder

import "sync"

var nv12Pool = struct {
	mu   sync.Mutex
	pool sync.Pool
	w, h int
}{}

func getNV12Buffer(w, h int) []byte {
	size := w*h + w*h/2
	nv12Pool.mu.Lock()
	if nv12Pool.w == w && nv12Pool.h == h {
		nv12Pool.mu.Unlock()
		if v := nv12Pool.pool.Get(); v != nil {
			return v.([]byte)
		}
		return make([]byte, size)
	}
	nv12Pool.w, nv12Pool.h = w, h
	nv12Pool.pool = sync.Pool{}
	nv12Pool.mu.Unlock()
	return make([]byte, size)
}

func putNV12Buffer(buf []byte) { nv12Pool.pool.Put(buf) }

// bgraToNV12 converts BGRA8 pixel data to NV12 using BT.601 fixed-point
// coefficients, the layout every MFT H264/H265 encoder on this machine
// expects as input.
func bgraToNV12(bgra []byte, width, height, stride int) []byte {
	nv12 := getNV12Buffer(width, height)
	yPlane := nv12[:width*height]
	uvPlane := nv12[width*height:]

	for y := 0; y < height; y++ {
		rowOff := y * stride
		yOff := y * width
		for x := 0; x < width; x++ {
			pi := rowOff + x*4
			b := int(bgra[pi+0])
			g := int(bgra[pi+1])
			r := int(bgra[pi+2])

			yVal := clamp16235((66*r+129*g+25*b+128)>>8 + 16)
			yPlane[yOff+x] = byte(yVal)

			if y%2 == 0 && x%2 == 0 {
				u := clamp16235((-38*r - 74*g + 112*b + 128) >> 8 + 128)
				v := clamp16235((112*r - 94*g - 18*b + 128) >> 8 + 128)
				uvOff := (y/2)*width + (x/2)*2
				uvPlane[uvOff] = byte(u)
				uvPlane[uvOff+1] = byte(v)
			}
		}
	}
	return nv12
}

// ScaleBGRANearest resizes BGRA8 pixel data from srcW x srcH to dstW x dstH
// using nearest-neighbor sampling, returning a tightly packed buffer (stride
// == dstW*4). Used ahead of encode wherever a caller needs to honor a
// resolution cap the source capture didn't already produce, such as the
// motion photo clip's lower-resolution target. If dstW/dstH already match
// the source, the input is returned unchanged.
func ScaleBGRANearest(bgra []byte, srcW, srcH, srcStride, dstW, dstH int) (out []byte, w, h, stride int) {
	if dstW <= 0 || dstH <= 0 || (dstW == srcW && dstH == srcH) {
		return bgra, srcW, srcH, srcStride
	}
	dstStride := dstW * 4
	dst := make([]byte, dstStride*dstH)
	for y := 0; y < dstH; y++ {
		srcY := y * srcH / dstH
		srcRowOff := srcY * srcStride
		dstRowOff := y * dstStride
		for x := 0; x < dstW; x++ {
			srcX := x * srcW / dstW
			si := srcRowOff + srcX*4
			di := dstRowOff + x*4
			copy(dst[di:di+4], bgra[si:si+4])
		}
	}
	return dst, dstW, dstH, dstStride
}

func clamp16235(v int) int {
	if v > 235 {
		return 235
	}
	if v < 16 {
		return 16
	}
	return v
}
