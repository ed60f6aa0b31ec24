// Copyright (C) The Geoassign Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package geoassign

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// ErrorCode is the machine-readable part of every pipeline failure.
// Callers branch on the code, never on message text.
type ErrorCode string

const (
	CodeMissingFiles     ErrorCode = "E001"
	CodeInvalidInput     ErrorCode = "E002"
	CodeLocusMismatch    ErrorCode = "E003"
	CodeProcessFailure   ErrorCode = "E004"
	CodeParseFailure     ErrorCode = "E005"
	CodePermissionDenied ErrorCode = "E006"
	CodeUnknown          ErrorCode = "E999"
)

var codeNames = map[ErrorCode]string{
	CodeMissingFiles:     "MISSING_FILES",
	CodeInvalidInput:     "INVALID_VCF_FORMAT",
	CodeLocusMismatch:    "COORDINATE_MISMATCH",
	CodeProcessFailure:   "SCAT_EXECUTION_FAILED",
	CodeParseFailure:     "FILE_PARSING_ERROR",
	CodePermissionDenied: "PERMISSION_DENIED",
	CodeUnknown:          "UNKNOWN_ERROR",
}

func (code ErrorCode) String() string {
	if name, ok := codeNames[code]; ok {
		return string(code) + " " + name
	}
	return string(code)
}

// ErrorDetail is the structured payload attached to an Error. The
// concrete type depends on the code.
type ErrorDetail interface {
	detail()
	String() string
}

// ProcessDetail records everything needed to reproduce a failed
// external engine run.
type ProcessDetail struct {
	CommandLine []string `json:"command_line"`
	ExitCode    int      `json:"exit_code"`
	Stdout      string   `json:"stdout"`
	Stderr      string   `json:"stderr"`
}

func (*ProcessDetail) detail() {}

func (d *ProcessDetail) String() string {
	return fmt.Sprintf("command: %s\nexit code: %d\nstdout:\n%s\nstderr:\n%s", strings.Join(d.CommandLine, " "), d.ExitCode, d.Stdout, d.Stderr)
}

type MismatchDetail struct {
	TestLoci      int `json:"test_loci"`
	ReferenceLoci int `json:"reference_loci"`
}

func (*MismatchDetail) detail() {}

func (d *MismatchDetail) String() string {
	return fmt.Sprintf("test loci: %d, reference loci: %d", d.TestLoci, d.ReferenceLoci)
}

type MissingDetail struct {
	Paths []string `json:"paths"`
}

func (*MissingDetail) detail() {}

func (d *MissingDetail) String() string {
	return strings.Join(d.Paths, ", ")
}

// WrappedDetail preserves the message of an error that did not belong
// to the taxonomy when it was caught.
type WrappedDetail struct {
	Cause string `json:"cause"`
}

func (*WrappedDetail) detail() {}

func (d *WrappedDetail) String() string { return d.Cause }

// Error is the single error type returned by the pipeline.
type Error struct {
	Code       ErrorCode
	Message    string
	Detail     ErrorDetail
	Path       string
	Suggestion string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", string(e.Code), e.Message)
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf returns the code carried by err, or CodeUnknown if err is not
// (and does not wrap) an *Error.
func CodeOf(err error) ErrorCode {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Code
	}
	return CodeUnknown
}

func errMissingFiles(msg string, paths ...string) *Error {
	e := &Error{
		Code:       CodeMissingFiles,
		Message:    msg,
		Detail:     &MissingDetail{Paths: paths},
		Suggestion: "check that the listed files exist and the species/SNP panel is installed",
	}
	if len(paths) == 1 {
		e.Path = paths[0]
	}
	return e
}

func errInvalidInput(path, msg string) *Error {
	return &Error{
		Code:       CodeInvalidInput,
		Message:    msg,
		Path:       path,
		Suggestion: "check that the input is a valid VCF file with a #CHROM header and genotype (GT) calls",
	}
}

func errLocusMismatch(testLoci, refLoci int) *Error {
	return &Error{
		Code:       CodeLocusMismatch,
		Message:    fmt.Sprintf("locus count mismatch: test specimen has %d loci, reference panel has %d loci", testLoci, refLoci),
		Detail:     &MismatchDetail{TestLoci: testLoci, ReferenceLoci: refLoci},
		Suggestion: "genotype the test specimen with the same SNP panel as the reference data",
	}
}

func errProcess(detail *ProcessDetail, err error) *Error {
	return &Error{
		Code:       CodeProcessFailure,
		Message:    fmt.Sprintf("SCAT execution failed with exit code %d", detail.ExitCode),
		Detail:     detail,
		Path:       firstOrEmpty(detail.CommandLine),
		Suggestion: "check the SCAT executable and the captured stdout/stderr",
		Err:        err,
	}
}

func errParse(path, msg string) *Error {
	return &Error{
		Code:       CodeParseFailure,
		Message:    msg,
		Path:       path,
		Suggestion: "check the file contents for truncated or non-numeric rows",
	}
}

func errPermission(path string, err error) *Error {
	return &Error{
		Code:       CodePermissionDenied,
		Message:    fmt.Sprintf("permission denied: %s", err),
		Path:       path,
		Suggestion: "check file and directory permissions",
		Err:        err,
	}
}

func errUnknown(err error) *Error {
	return &Error{
		Code:       CodeUnknown,
		Message:    fmt.Sprintf("Pipeline execution failed: %s", err),
		Detail:     &WrappedDetail{Cause: err.Error()},
		Suggestion: "see the log output for details",
		Err:        err,
	}
}

// errFromOpen classifies a failure to open or create path.
func errFromOpen(path, what string, err error) *Error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		e := errMissingFiles(fmt.Sprintf("%s not found", what), path)
		e.Err = err
		return e
	case errors.Is(err, fs.ErrPermission):
		return errPermission(path, err)
	default:
		e := errParse(path, fmt.Sprintf("cannot read %s: %s", what, err))
		e.Err = err
		return e
	}
}

// asPipelineError returns err unchanged if it already carries a code,
// otherwise wraps it as unknown.
func asPipelineError(err error) *Error {
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}
	return errUnknown(err)
}

func firstOrEmpty(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
