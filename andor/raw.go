package andor

import (
	"errors"
	"fmt"

	cwch "github.com/lordadamson/cgo.wchar"
)

/*
#cgo CFLAGS: -I/usr/local
#cgo LDFLAGS: -L/usr/local/lib -latcore
#include <stdlib.h>
#include <atcore.h>

*/
import "C"

// undefinedBufferLength is how many Wchars to allocate when the SDK gives
// no way to know the string length ahead of time
const undefinedBufferLength = 255

// ErrBufferNotOnQueue is generated before a catastrophic side effect is triggered
var ErrBufferNotOnQueue = errors.New("no buffer placed on queue, this error saves you from memory corruption")

// errCodes maps SDK error codes to their symbolic names
var errCodes = map[DRVError]string{
	0:  "AT_SUCCESS",
	1:  "AT_ERR_NOT_INITIALISED",
	2:  "AT_ERR_NOT_IMPLEMENTED",
	3:  "AT_ERR_READONLY",
	4:  "AT_ERR_NOT_READABLE",
	5:  "AT_ERR_NOT_WRITABLE",
	6:  "AT_ERR_OUT_OF_RANGE",
	7:  "AT_ERR_INDEX_NOT_AVAILABLE",
	8:  "AT_ERR_INDEX_NOT_IMPLEMENTED",
	9:  "AT_ERR_EXCEEDED_MAX_STRING_LENGTH",
	10: "AT_ERR_CONNECTION",
	11: "AT_ERR_NO_DATA",
	12: "AT_ERR_INVALID_HANDLE",
	13: "AT_ERR_TIMED_OUT",
	14: "AT_ERR_BUFFER_FULL",
	15: "AT_ERR_INVALID_SIZE",
	16: "AT_ERR_INVALID_ALIGNMENT",
	17: "AT_ERR_COMM",
	18: "AT_ERR_STRING_NOT_AVAILABLE",
	19: "AT_ERR_STRING_NOT_IMPLEMENTED",
	37: "AT_ERR_NO_MEMORY",
	38: "AT_ERR_DEVICE_IN_USE",
	39: "AT_ERR_DEVICE_NOT_FOUND",

	100: "AT_ERR_HARDWARE_OVERFLOW",
}

// DRVError represents a nonzero return code from the SDK
type DRVError int

func (e DRVError) Error() string {
	if s, ok := errCodes[e]; ok {
		return fmt.Sprintf("%d - %s", int(e), s)
	}
	return fmt.Sprintf("%d - UNKNOWN_ERROR_CODE", int(e))
}

const errTimedOut = DRVError(13)

// Error converts an SDK return code to nil or a DRVError
func Error(code int) error {
	if code == 0 {
		return nil
	}
	return DRVError(code)
}

// InitializeLibrary calls the function of the same name in the Andor SDK
func InitializeLibrary() error {
	return Error(int(C.AT_InitialiseLibrary()))
}

// FinalizeLibrary calls the function of the same name in the Andor SDK
func FinalizeLibrary() {
	C.AT_FinaliseLibrary()
}

// SetInt sets an integer feature
func SetInt(handle int, feature string, val int64) error {
	cstr, err := cwch.FromGoString(feature)
	if err != nil {
		return err
	}
	str := (*C.AT_WC)(cstr.Pointer())
	return Error(int(C.AT_SetInt(C.AT_H(handle), str, C.AT_64(val))))
}

// GetInt gets an integer feature
func GetInt(handle int, feature string) (int, error) {
	cstr, err := cwch.FromGoString(feature)
	if err != nil {
		return 0, err
	}
	str := (*C.AT_WC)(cstr.Pointer())
	var out C.AT_64
	errCode := int(C.AT_GetInt(C.AT_H(handle), str, &out))
	return int(out), Error(errCode)
}

// SetFloat sets a floating point feature
func SetFloat(handle int, feature string, value float64) error {
	cstr, err := cwch.FromGoString(feature)
	if err != nil {
		return err
	}
	str := (*C.AT_WC)(cstr.Pointer())
	return Error(int(C.AT_SetFloat(C.AT_H(handle), str, C.double(value))))
}

// GetFloat gets a floating point feature
func GetFloat(handle int, feature string) (float64, error) {
	cstr, err := cwch.FromGoString(feature)
	if err != nil {
		return 0, err
	}
	str := (*C.AT_WC)(cstr.Pointer())
	var out C.double
	errCode := int(C.AT_GetFloat(C.AT_H(handle), str, &out))
	return float64(out), Error(errCode)
}

// GetFloatMax gets the maximum a floating point feature can be set to
func GetFloatMax(handle int, feature string) (float64, error) {
	// identical to GetFloat except for the C call
	cstr, err := cwch.FromGoString(feature)
	if err != nil {
		return 0, err
	}
	str := (*C.AT_WC)(cstr.Pointer())
	var out C.double
	errCode := int(C.AT_GetFloatMax(C.AT_H(handle), str, &out))
	return float64(out), Error(errCode)
}

// GetFloatMin gets the minimum a floating point feature can be set to
func GetFloatMin(handle int, feature string) (float64, error) {
	// identical to GetFloat except for the C call
	cstr, err := cwch.FromGoString(feature)
	if err != nil {
		return 0, err
	}
	str := (*C.AT_WC)(cstr.Pointer())
	var out C.double
	errCode := int(C.AT_GetFloatMin(C.AT_H(handle), str, &out))
	return float64(out), Error(errCode)
}

// GetEnumCount gets the number of entries in the enum behind a feature
func GetEnumCount(handle int, feature string) (int, error) {
	cstr, err := cwch.FromGoString(feature)
	if err != nil {
		return 0, err
	}
	strc := (*C.AT_WC)(cstr.Pointer())
	var out C.int
	errCode := int(C.AT_GetEnumCount(C.AT_H(handle), strc, &out))
	return int(out), Error(errCode)
}

// GetEnumStringByIndex gets the string value of an enum at a given index
func GetEnumStringByIndex(handle int, feature string, idx int) (string, error) {
	cstr, err := cwch.FromGoString(feature)
	if err != nil {
		return "", err
	}
	strc := (*C.AT_WC)(cstr.Pointer())
	buf := cwch.NewWcharString(undefinedBufferLength)
	strb := (*C.AT_WC)(buf.Pointer())
	errCode := int(C.AT_GetEnumStringByIndex(C.AT_H(handle), strc, C.int(idx), strb, C.int(undefinedBufferLength)))
	gostr, err := buf.GoString()
	if err != nil {
		return "", err
	}
	return gostr, Error(errCode)
}

// SetEnumIndex sets the value of a feature to an index in the backing enum
func SetEnumIndex(handle int, feature string, idx int) error {
	cstr, err := cwch.FromGoString(feature)
	if err != nil {
		return err
	}
	strc := (*C.AT_WC)(cstr.Pointer())
	errCode := int(C.AT_SetEnumIndex(C.AT_H(handle), strc, C.int(idx)))
	return Error(errCode)
}

// IssueCommand sends a command feature to the SDK
func IssueCommand(handle int, feature string) error {
	cstr, err := cwch.FromGoString(feature)
	if err != nil {
		return err
	}
	strc := (*C.AT_WC)(cstr.Pointer())
	return Error(int(C.AT_Command(C.AT_H(handle), strc)))
}
