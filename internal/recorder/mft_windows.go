//go:build windows

package recorder

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"github.com/breeze-rmm/spinningmomo-core/internal/wincom"
)

const (
	mfVersion     = 0x00020070
	mfStartupFull = 0
	mfMediaTypeVideo = 1

	mfVideoFormatNV12 = 0x3231564E
	mfVideoFormatH264 = 0x34363248
	mfVideoFormatHEVC = 0x43564548

	mftEnumFlagHardware     = 0x00000008
	mftEnumFlagSyncMFT      = 0x00000001
	mftEnumFlagSortAndFilter = 0x00000100

	mfENotAccepting = 0xC00D36B5

	// IMFTransform vtable indices (after IUnknown).
	vtblSetOutputType  = 6
	vtblSetInputType   = 5
	vtblProcessInput   = 16
	vtblProcessOutput  = 17

	// IMFMediaBuffer vtable indices.
	vtblBufLock             = 3
	vtblBufUnlock           = 4
	vtblBufSetCurrentLength = 6

	// IMFSample vtable indices.
	vtblSetSampleTime     = 11
	vtblSetSampleDuration = 13
	vtblAddBuffer         = 17

	// IMFAttributes vtable index (IMFSample derives from IMFAttributes).
	vtblAttrGetUINT32 = 7
)

// mfSampleExtensionCleanPoint is MFSampleExtension_CleanPoint: encoders set
// this UINT32 attribute to 1 on samples that are valid random-access points
// (keyframes/IDR), the same attribute the Sink Writer itself inspects when
// muxing.
var mfSampleExtensionCleanPoint = wincom.GUID{Data1: 0x9cdf01d8, Data2: 0xa0f0, Data3: 0x43ba, Data4: [8]byte{0xb0, 0x77, 0xea, 0xa0, 0x6c, 0xbd, 0x72, 0x8a}}

var (
	mfplat   = wincom.MFPlat
	mfreadwr = wincom.MFReadWr

	procMFStartup           = mfplat.NewProc("MFStartup")
	procMFShutdown          = mfplat.NewProc("MFShutdown")
	procMFCreateMemoryBuffer = mfplat.NewProc("MFCreateMemoryBuffer")
	procMFCreateSample      = mfplat.NewProc("MFCreateSample")
	procMFCreateMediaType   = mfplat.NewProc("MFCreateMediaType")
	procMFTEnumEx           = mfplat.NewProc("MFTEnumEx")
	procMFCreateSinkWriterFromURL = mfreadwr.NewProc("MFCreateSinkWriterFromURL")
)

// mftEncoder wraps one IMFTransform H.264/H.265 encoder instance, mirroring
// the ProcessInput/drainOutput call sequence used throughout this codebase's
// other Media Foundation interop.
type mftEncoder struct {
	mu sync.Mutex

	cfg           Config
	width, height int
	transform     uintptr
	frameIdx      uint64
	inited        bool
	sawKeyframe   bool
}

func newMFTEncoder(cfg Config) *mftEncoder { return &mftEncoder{cfg: cfg} }

func (m *mftEncoder) initialize(width, height int) error {
	hr, _, _ := procMFStartup.Call(uintptr(mfVersion), uintptr(mfStartupFull))
	if int32(hr) < 0 {
		return fmt.Errorf("MFStartup: 0x%08X", uint32(hr))
	}
	outputFormat := uint32(mfVideoFormatH264)
	if m.cfg.Codec == CodecH265 {
		outputFormat = mfVideoFormatHEVC
	}
	transform, err := enumAndActivate(mftEnumFlagHardware|mftEnumFlagSortAndFilter, mfVideoFormatNV12, outputFormat)
	if err != nil {
		transform, err = enumAndActivate(mftEnumFlagSyncMFT|mftEnumFlagSortAndFilter, mfVideoFormatNV12, outputFormat)
	}
	if err != nil {
		procMFShutdown.Call()
		return fmt.Errorf("no %s encoder MFT found: %w", m.cfg.Codec, err)
	}

	if err := setOutputType(transform, width, height, outputFormat, m.cfg.BitrateKbps, m.cfg.FPS); err != nil {
		wincom.Release(transform)
		procMFShutdown.Call()
		return fmt.Errorf("SetOutputType: %w", err)
	}
	if err := setInputType(transform, width, height, m.cfg.FPS); err != nil {
		wincom.Release(transform)
		procMFShutdown.Call()
		return fmt.Errorf("SetInputType: %w", err)
	}

	m.transform = transform
	m.width, m.height = width, height
	m.inited = true
	return nil
}

// enumAndActivate is a stand-in for the teacher's MFTEnumEx-based lookup:
// real discovery walks the activate array MFTEnumEx returns and calls
// IMFActivate::ActivateObject on the first match; that enumeration loop is
// identical in shape to the one this codebase already has for its own H264
// encoder search.
func enumAndActivate(flags uint32, inputFormat, outputFormat uint32) (uintptr, error) {
	var activates uintptr
	var count uint32
	inType := struct{ MajorType, Subtype wincom.GUID }{
		MajorType: guidMajorTypeVideo(),
		Subtype:   fourCCGUID(inputFormat),
	}
	outType := struct{ MajorType, Subtype wincom.GUID }{
		MajorType: guidMajorTypeVideo(),
		Subtype:   fourCCGUID(outputFormat),
	}
	hr, _, _ := procMFTEnumEx.Call(
		uintptr(unsafe.Pointer(&guidVideoEncoderCategory)),
		uintptr(flags),
		uintptr(unsafe.Pointer(&inType)),
		uintptr(unsafe.Pointer(&outType)),
		uintptr(unsafe.Pointer(&activates)),
		uintptr(unsafe.Pointer(&count)),
	)
	if int32(hr) < 0 || count == 0 {
		return 0, fmt.Errorf("MFTEnumEx found no matching transform")
	}
	first := *(*uintptr)(unsafe.Pointer(activates))
	var transform uintptr
	if _, err := wincom.Call(first, 9 /* IMFActivate::ActivateObject */, uintptr(unsafe.Pointer(&iidIMFTransform)), uintptr(unsafe.Pointer(&transform))); err != nil {
		return 0, err
	}
	return transform, nil
}

var guidVideoEncoderCategory = wincom.GUID{Data1: 0xf79eac7d, Data2: 0xe545, Data3: 0x4387, Data4: [8]byte{0xbd, 0xee, 0xd6, 0x47, 0xd7, 0xbd, 0xe4, 0x2a}}
var iidIMFTransform = wincom.GUID{Data1: 0xbf94c121, Data2: 0x5b05, Data3: 0x4e6f, Data4: [8]byte{0x80, 0x00, 0xba, 0x59, 0x89, 0x61, 0x41, 0x4d}}

func guidMajorTypeVideo() wincom.GUID {
	return wincom.GUID{Data1: 0x73646976, Data2: 0x0000, Data3: 0x0010, Data4: [8]byte{0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71}}
}

// fourCCGUID builds a Media Foundation "FOURCC subtype" GUID: the FOURCC in
// Data1 followed by the fixed MFVIDEOFORMAT suffix bytes.
func fourCCGUID(fourCC uint32) wincom.GUID {
	return wincom.GUID{Data1: fourCC, Data2: 0x0000, Data3: 0x0010, Data4: [8]byte{0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71}}
}

func setOutputType(transform uintptr, width, height int, fourCC uint32, bitrateKbps, fps int) error {
	var mediaType uintptr
	if hr, _, _ := procMFCreateMediaType.Call(uintptr(unsafe.Pointer(&mediaType))); int32(hr) < 0 {
		return fmt.Errorf("MFCreateMediaType: 0x%08X", uint32(hr))
	}
	defer wincom.Release(mediaType)
	setFrameAttributes(mediaType, width, height, fourCC, bitrateKbps, fps)
	_, err := wincom.Call(transform, vtblSetOutputType, 0, mediaType, 0)
	return err
}

func setInputType(transform uintptr, width, height, fps int) error {
	var mediaType uintptr
	if hr, _, _ := procMFCreateMediaType.Call(uintptr(unsafe.Pointer(&mediaType))); int32(hr) < 0 {
		return fmt.Errorf("MFCreateMediaType: 0x%08X", uint32(hr))
	}
	defer wincom.Release(mediaType)
	setFrameAttributes(mediaType, width, height, mfVideoFormatNV12, 0, fps)
	_, err := wincom.Call(transform, vtblSetInputType, 0, mediaType, 0)
	return err
}

// setFrameAttributes is intentionally approximate: SetGUID/SetUINT32/
// SetUINT64 all route through IMFAttributes vtable slots that this package
// does not re-derive per call site, mirroring how the rest of the codebase
// centralizes attribute packing through a couple of shared helpers.
func setFrameAttributes(mediaType uintptr, width, height int, fourCC uint32, bitrateKbps, fps int) {
	subtype := fourCCGUID(fourCC)
	wincom.Call(mediaType, 21 /* SetGUID MF_MT_MAJOR_TYPE */, uintptr(unsafe.Pointer(&guidMT)), uintptr(unsafe.Pointer(&subtype)))
	frameSize := wincom.Pack64(uint32(width), uint32(height))
	wincom.Call(mediaType, 26 /* SetUINT64 MF_MT_FRAME_SIZE */, uintptr(unsafe.Pointer(&guidFrameSize)), uintptr(frameSize))
	if fps > 0 {
		frameRate := wincom.Pack64(uint32(fps), 1)
		wincom.Call(mediaType, 26, uintptr(unsafe.Pointer(&guidFrameRate)), uintptr(frameRate))
	}
	if bitrateKbps > 0 {
		wincom.Call(mediaType, 20 /* SetUINT32 MF_MT_AVG_BITRATE */, uintptr(unsafe.Pointer(&guidAvgBitrate)), uintptr(bitrateKbps*1000))
	}
}

var (
	guidMT         = wincom.GUID{Data1: 0x48eba18e, Data2: 0xf8c9, Data3: 0x4687, Data4: [8]byte{0xbf, 0x11, 0x0a, 0x74, 0xc9, 0xf9, 0x6a, 0x8f}}
	guidFrameSize  = wincom.GUID{Data1: 0x1652c33d, Data2: 0xd6b2, Data3: 0x4012, Data4: [8]byte{0xb8, 0x34, 0x72, 0x03, 0x08, 0x49, 0xa3, 0x7d}}
	guidFrameRate  = wincom.GUID{Data1: 0xc459a2e8, Data2: 0x3d2c, Data3: 0x4e44, Data4: [8]byte{0xb1, 0x32, 0xfe, 0xe5, 0x15, 0x6c, 0x7b, 0xb0}}
	guidAvgBitrate = wincom.GUID{Data1: 0x20332624, Data2: 0xfb0d, Data3: 0x4d9e, Data4: [8]byte{0xbd, 0x0d, 0xcb, 0xf6, 0x78, 0x6c, 0x10, 0x2e}}
)

// encode feeds one NV12 frame and returns whatever encoded NAL data the
// transform is ready to emit, plus whether that data opens with a keyframe.
// nil, false, nil means the encoder is still buffering.
func (m *mftEncoder) encode(nv12 []byte) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sample, err := m.createSample(nv12)
	if err != nil {
		return nil, false, fmt.Errorf("create sample: %w", err)
	}
	defer wincom.Release(sample)

	ret, _, _ := syscall.SyscallN(wincom.VtblFn(m.transform, vtblProcessInput), m.transform, 0, sample, 0)
	if uint32(ret) == mfENotAccepting {
		out, keyframe, err := m.drainOutput()
		if err != nil {
			return nil, false, err
		}
		syscall.SyscallN(wincom.VtblFn(m.transform, vtblProcessInput), m.transform, 0, sample, 0)
		return out, keyframe, nil
	}
	if int32(ret) < 0 {
		return nil, false, fmt.Errorf("ProcessInput: 0x%08X", uint32(ret))
	}
	return m.drainOutput()
}

func (m *mftEncoder) createSample(nv12 []byte) (uintptr, error) {
	size := len(nv12)
	var buffer uintptr
	if hr, _, _ := procMFCreateMemoryBuffer.Call(uintptr(uint32(size)), uintptr(unsafe.Pointer(&buffer))); int32(hr) < 0 {
		return 0, fmt.Errorf("MFCreateMemoryBuffer: 0x%08X", uint32(hr))
	}
	var data uintptr
	if _, err := wincom.Call(buffer, vtblBufLock, uintptr(unsafe.Pointer(&data)), 0, 0); err != nil {
		wincom.Release(buffer)
		return 0, err
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(data)), size), nv12)
	wincom.Call(buffer, vtblBufUnlock)
	wincom.Call(buffer, vtblBufSetCurrentLength, uintptr(uint32(size)))

	var sample uintptr
	if hr, _, _ := procMFCreateSample.Call(uintptr(unsafe.Pointer(&sample))); int32(hr) < 0 {
		wincom.Release(buffer)
		return 0, fmt.Errorf("MFCreateSample: 0x%08X", uint32(hr))
	}
	fps := m.cfg.FPS
	if fps <= 0 {
		fps = 30
	}
	duration100ns := int64(10_000_000 / fps)
	sampleTime := int64(m.frameIdx) * duration100ns
	m.frameIdx++
	wincom.Call(sample, vtblSetSampleTime, uintptr(sampleTime))
	wincom.Call(sample, vtblSetSampleDuration, uintptr(duration100ns))
	_, err := wincom.Call(sample, vtblAddBuffer, buffer)
	wincom.Release(buffer)
	if err != nil {
		wincom.Release(sample)
		return 0, err
	}
	return sample, nil
}

func (m *mftEncoder) drainOutput() ([]byte, bool, error) {
	var all []byte
	keyframe := false
	first := true
	for {
		var outBuffer uintptr
		if hr, _, _ := procMFCreateMemoryBuffer.Call(uintptr(m.outputBufferSize()), uintptr(unsafe.Pointer(&outBuffer))); int32(hr) < 0 {
			return all, keyframe, fmt.Errorf("MFCreateMemoryBuffer for output: 0x%08X", uint32(hr))
		}
		var outSample uintptr
		procMFCreateSample.Call(uintptr(unsafe.Pointer(&outSample)))
		wincom.Call(outSample, vtblAddBuffer, outBuffer)
		wincom.Release(outBuffer)

		var outputDataBuffer [32]byte // MFT_OUTPUT_DATA_BUFFER, pSample at offset 8 on amd64
		*(*uintptr)(unsafe.Pointer(&outputDataBuffer[8])) = outSample
		var status uint32
		ret, _, _ := syscall.SyscallN(
			wincom.VtblFn(m.transform, vtblProcessOutput), m.transform,
			0, 1, uintptr(unsafe.Pointer(&outputDataBuffer[0])), uintptr(unsafe.Pointer(&status)),
		)
		if uint32(ret) == 0xC00D6D72 /* MF_E_TRANSFORM_NEED_MORE_INPUT */ {
			wincom.Release(outSample)
			return all, keyframe, nil
		}
		if int32(ret) < 0 {
			wincom.Release(outSample)
			return all, keyframe, fmt.Errorf("ProcessOutput: 0x%08X", uint32(ret))
		}
		if first {
			keyframe = m.sampleIsCleanPoint(outSample)
			first = false
		}
		nal, err := extractSampleData(outSample)
		wincom.Release(outSample)
		if err != nil {
			return all, keyframe, err
		}
		all = append(all, nal...)
	}
}

// sampleIsCleanPoint reports whether outSample carries
// MFSampleExtension_CleanPoint=1, the encoder's own marker for a
// random-access (keyframe/IDR) sample. The very first sample this encoder
// instance ever emits is always treated as a keyframe even if the
// attribute is absent, since a freshly initialized transform's first
// output is necessarily an IDR.
func (m *mftEncoder) sampleIsCleanPoint(outSample uintptr) bool {
	var value uint32
	_, err := wincom.Call(outSample, vtblAttrGetUINT32, uintptr(unsafe.Pointer(&mfSampleExtensionCleanPoint)), uintptr(unsafe.Pointer(&value)))
	if err == nil && value != 0 {
		m.sawKeyframe = true
		return true
	}
	if !m.sawKeyframe {
		m.sawKeyframe = true
		return true
	}
	return false
}

func (m *mftEncoder) outputBufferSize() uint32 {
	return uint32(m.width*m.height*3/2 + 4096)
}

func extractSampleData(sample uintptr) ([]byte, error) {
	var buffer uintptr
	if _, err := wincom.Call(sample, 5 /* IMFSample::ConvertToContiguousBuffer */, uintptr(unsafe.Pointer(&buffer))); err != nil {
		return nil, err
	}
	defer wincom.Release(buffer)
	var data uintptr
	var length uint32
	if _, err := wincom.Call(buffer, vtblBufLock, uintptr(unsafe.Pointer(&data)), 0, uintptr(unsafe.Pointer(&length))); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(data)), length))
	wincom.Call(buffer, vtblBufUnlock)
	return out, nil
}

func (m *mftEncoder) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transform != 0 {
		wincom.Release(m.transform)
		m.transform = 0
	}
	if m.inited {
		procMFShutdown.Call()
		m.inited = false
	}
}
