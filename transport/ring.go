package transport

// ringBufferSize matches the 128-byte capacity described in spec.md
// §4.A (1 << RING_BUFFER_SIZE_SHIFT in the reference ring_buffer_t).
const ringBufferSize = 128

// ringBuffer is a fixed-capacity single-producer/single-consumer byte
// ring: the transport's reader goroutine-free fill path is the
// producer, ReadLine is the consumer. It is not safe for concurrent
// use, matching the Session's single-threaded contract (spec.md §5).
type ringBuffer struct {
	buf        [ringBufferSize]byte
	head, size int
}

func (r *ringBuffer) Len() int      { return r.size }
func (r *ringBuffer) Cap() int      { return ringBufferSize }
func (r *ringBuffer) Free() int     { return ringBufferSize - r.size }
func (r *ringBuffer) IsEmpty() bool { return r.size == 0 }

// Write copies as much of data as fits and returns the number of bytes
// written.
func (r *ringBuffer) Write(data []byte) int {
	n := len(data)
	if n > r.Free() {
		n = r.Free()
	}
	tail := (r.head + r.size) % ringBufferSize
	for i := 0; i < n; i++ {
		r.buf[(tail+i)%ringBufferSize] = data[i]
	}
	r.size += n
	return n
}

// ReadByte pops the oldest byte. ok is false if the ring is empty.
func (r *ringBuffer) ReadByte() (b byte, ok bool) {
	if r.size == 0 {
		return 0, false
	}
	b = r.buf[r.head]
	r.head = (r.head + 1) % ringBufferSize
	r.size--
	return b, true
}
