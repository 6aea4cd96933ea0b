package minixfs

// Read copies up to len(buf) bytes starting at file offset pos out of
// ino's data zones, stopping at ino.Size (spec.md §4.5 file_read). A hole
// (an unallocated zone within the file's size) reads as zeros.
func (fs *FileSystem) Read(ino *Inode, pos int64, buf []byte) (int, error) {
	ino.mu.Lock()
	size := int64(ino.Size)
	ino.mu.Unlock()

	if pos >= size {
		return 0, nil
	}
	if pos+int64(len(buf)) > size {
		buf = buf[:size-pos]
	}

	total := 0
	for total < len(buf) {
		blockNum := int((pos + int64(total)) / BlockSize)
		blockOff := int((pos + int64(total)) % BlockSize)
		n := BlockSize - blockOff
		if rem := len(buf) - total; rem < n {
			n = rem
		}

		zone, err := fs.Bmap(ino, blockNum, false)
		if err != nil {
			return total, err
		}
		if zone == 0 {
			for i := 0; i < n; i++ {
				buf[total+i] = 0
			}
		} else {
			b, err := fs.cache.Bread(ino.Dev, zone)
			if err != nil {
				return total, err
			}
			if b == nil {
				return total, errIOError(ino.Dev, zone)
			}
			copy(buf[total:total+n], b.Data[blockOff:blockOff+n])
			fs.cache.Brelse(b)
		}
		total += n
	}
	return total, nil
}

// Write copies data into ino's data zones starting at file offset pos,
// allocating zones on demand and growing ino.Size as needed (spec.md §4.5
// file_write). Appends (pos == current size) are the common case but any
// offset, including past the current end (creating a hole), is accepted.
func (fs *FileSystem) Write(ino *Inode, pos int64, data []byte) (int, error) {
	total := 0
	for total < len(data) {
		blockNum := int((pos + int64(total)) / BlockSize)
		blockOff := int((pos + int64(total)) % BlockSize)
		n := BlockSize - blockOff
		if rem := len(data) - total; rem < n {
			n = rem
		}

		zone, err := fs.Bmap(ino, blockNum, true)
		if err != nil {
			return total, err
		}
		if zone == 0 {
			return total, ErrNoSpace
		}

		if n == BlockSize {
			// Whole block overwritten: no need to read the old
			// contents first.
			b, err := fs.cache.Getblk(ino.Dev, zone)
			if err != nil {
				return total, err
			}
			copy(b.Data[:], data[total:total+n])
			b.Uptodate = true
			fs.cache.MarkDirty(b)
			b.Unlock()
			fs.cache.Brelse(b)
		} else {
			b, err := fs.cache.Bread(ino.Dev, zone)
			if err != nil {
				return total, err
			}
			if b == nil {
				return total, errIOError(ino.Dev, zone)
			}
			copy(b.Data[blockOff:blockOff+n], data[total:total+n])
			fs.cache.MarkDirty(b)
			fs.cache.Brelse(b)
		}

		total += n
	}

	end := uint64(pos) + uint64(total)
	ino.mu.Lock()
	if end > uint64(ino.Size) {
		ino.Size = uint32(end)
	}
	ino.dirty = true
	ino.mu.Unlock()
	return total, nil
}
