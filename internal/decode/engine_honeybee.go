// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build cgo && honeybee

package decode

/*
#cgo LDFLAGS: -lhoneybee
#include <stdint.h>
#include <stdlib.h>

typedef struct internal_ha_session *ha_session_t;
typedef struct hb_hive hb_hive;
typedef void (ha_hive_on_block_function)(ha_session_t session, void *context, uint64_t unslid_ip);

hb_hive *hb_hive_alloc(const char *hive_path);
void hb_hive_free(hb_hive *hive);

int ha_session_alloc(ha_session_t *session_out, hb_hive *hive);
int ha_session_reconfigure_with_terminated_trace_buffer(ha_session_t session, uint8_t *trace_buffer,
                                                        uint64_t trace_length, uint64_t trace_slide);
int ha_session_decode(ha_session_t session, ha_hive_on_block_function *on_block_function, void *context);
void ha_session_free(ha_session_t session);

extern void honeycovOnBlock(ha_session_t session, void *context, uint64_t unslid_ip);
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"

	"github.com/honeybee-pt/honeycov/internal/hive"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const Available = true

// cEngine drives a libhoneybee session. The library loads its own copy of
// the hive from the same file.
type cEngine struct {
	hive  *C.hb_hive
	sess  C.ha_session_t
	trace unsafe.Pointer // C copy of the current trace
}

func newEngine(m *hive.Map) (Engine, error) {
	if m.Path() == "" {
		return nil, errors.New("decode: hive was not loaded from a file")
	}
	path := C.CString(m.Path())
	defer C.free(unsafe.Pointer(path))
	h := C.hb_hive_alloc(path)
	if h == nil {
		return nil, errors.Errorf("decode: libhoneybee could not load hive %s", m.Path())
	}
	e := &cEngine{hive: h}
	if r := C.ha_session_alloc(&e.sess, h); r < 0 {
		e.freeHive()
		return nil, errors.Wrap(unix.Errno(-r), "ha_session_alloc")
	}
	return e, nil
}

func (e *cEngine) Reconfigure(trace []byte, length, slide uint64) int {
	e.freeTrace()
	e.trace = C.CBytes(trace)
	return int(C.ha_session_reconfigure_with_terminated_trace_buffer(e.sess,
		(*C.uint8_t)(e.trace), C.uint64_t(length), C.uint64_t(slide)))
}

func (e *cEngine) Decode(onBlock func(addr uint64)) int {
	h := cgo.NewHandle(onBlock)
	defer h.Delete()
	return int(C.ha_session_decode(e.sess,
		(*C.ha_hive_on_block_function)(C.honeycovOnBlock), unsafe.Pointer(&h)))
}

//export honeycovOnBlock
func honeycovOnBlock(_ C.ha_session_t, context unsafe.Pointer, ip C.uint64_t) {
	h := *(*cgo.Handle)(context)
	h.Value().(func(uint64))(uint64(ip))
}

func (e *cEngine) Close() {
	if e.sess != nil {
		C.ha_session_free(e.sess)
		e.sess = nil
	}
	e.freeTrace()
	e.freeHive()
}

func (e *cEngine) freeTrace() {
	if e.trace != nil {
		C.free(e.trace)
		e.trace = nil
	}
}

// freeHive releases the hive tables, then the hive itself, which
// hb_hive_free leaves allocated.
func (e *cEngine) freeHive() {
	if e.hive != nil {
		C.hb_hive_free(e.hive)
		C.free(unsafe.Pointer(e.hive))
		e.hive = nil
	}
}
