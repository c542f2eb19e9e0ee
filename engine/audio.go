package engine

import (
	"sync"
	"unsafe"

	"github.com/Zyko0/go-sdl3/sdl"

	"github.com/YitingChang/eye-tracking/task"
)

const (
	MaxActiveSounds   = 16
	AudioScratchBytes = 4096
)

type ActiveSound struct {
	Resource *SoundResource
	PlayPos  uint32
	Active   bool
}

// AudioMixer sums up to MaxActiveSounds S16 stereo buffers into the SDL
// audio stream. Callback runs on the SDL audio thread.
type AudioMixer struct {
	Slots   [MaxActiveSounds]ActiveSound
	Mutex   sync.Mutex
	Scratch []byte
}

func NewAudioMixer() *AudioMixer {
	return &AudioMixer{
		Scratch: make([]byte, AudioScratchBytes),
	}
}

func (m *AudioMixer) Callback(stream *sdl.AudioStream, additionalAmount, totalAmount int32) {
	remaining := int(additionalAmount)
	for remaining > 0 {
		chunk := min(remaining, AudioScratchBytes)
		clear(m.Scratch[:chunk])

		m.Mutex.Lock()
		dst := unsafe.Slice((*int16)(unsafe.Pointer(&m.Scratch[0])), chunk/2)
		for i := range m.Slots {
			s := &m.Slots[i]
			if !s.Active {
				continue
			}
			mixInto(dst, s, uint32(chunk))
		}
		m.Mutex.Unlock()

		stream.PutData(m.Scratch[:chunk])
		remaining -= chunk
	}
}

// mixInto adds up to n bytes of s into dst with saturation and advances s.
func mixInto(dst []int16, s *ActiveSound, n uint32) {
	left := uint32(len(s.Resource.Data)) - s.PlayPos
	n = min(n, left)
	if n >= 2 {
		src := unsafe.Slice((*int16)(unsafe.Pointer(&s.Resource.Data[s.PlayPos])), n/2)
		for j := range src {
			v := int32(dst[j]) + int32(src[j])
			dst[j] = int16(max(-32768, min(32767, v)))
		}
	}
	s.PlayPos += n
	if s.PlayPos >= uint32(len(s.Resource.Data)) {
		s.Active = false
	}
}

func (m *AudioMixer) Play(res *SoundResource) bool {
	if res == nil || len(res.Data) == 0 {
		return false
	}
	m.Mutex.Lock()
	defer m.Mutex.Unlock()

	for i := range m.Slots {
		if !m.Slots[i].Active {
			m.Slots[i] = ActiveSound{Resource: res, Active: true}
			return true
		}
	}
	return false
}

// Feedback plays the success and error sounds through the mixer.
type Feedback struct {
	mixer  *AudioMixer
	sounds map[task.Sound]*SoundResource
}

func NewFeedback(mixer *AudioMixer, success, failure *SoundResource) *Feedback {
	return &Feedback{
		mixer: mixer,
		sounds: map[task.Sound]*SoundResource{
			task.SoundSuccess: success,
			task.SoundError:   failure,
		},
	}
}

func (f *Feedback) Play(s task.Sound) {
	f.mixer.Play(f.sounds[s])
}
