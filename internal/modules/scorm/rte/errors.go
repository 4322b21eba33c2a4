package rte

import (
	"errors"
	"strconv"
)

// ErrorCode is the numeric RTE error reported through GetLastError.
type ErrorCode int

const (
	NoError                     ErrorCode = 0
	GeneralException            ErrorCode = 101
	AlreadyInitialized          ErrorCode = 103
	ContentInstanceTerminated   ErrorCode = 104
	TerminationBeforeInit       ErrorCode = 112
	TerminationAfterTermination ErrorCode = 113
	RetrieveBeforeInit          ErrorCode = 122
	RetrieveAfterTermination    ErrorCode = 123
	StoreBeforeInit             ErrorCode = 132
	StoreAfterTermination       ErrorCode = 133
	CommitBeforeInit            ErrorCode = 142
	CommitAfterTermination      ErrorCode = 143
	GeneralArgumentError        ErrorCode = 201
	GeneralGetFailure           ErrorCode = 301
	GeneralSetFailure           ErrorCode = 351
	GeneralCommitFailure        ErrorCode = 391
	UndefinedElement            ErrorCode = 401
	ValueNotInitialized         ErrorCode = 403
	ElementReadOnly             ErrorCode = 404
	ElementWriteOnly            ErrorCode = 405
	TypeMismatch                ErrorCode = 406
	ValueOutOfRange             ErrorCode = 407
	DependencyNotEstablished    ErrorCode = 408
)

var errorStrings = map[ErrorCode]string{
	NoError:                     "No Error",
	GeneralException:            "General Exception",
	AlreadyInitialized:          "Already Initialized",
	ContentInstanceTerminated:   "Content Instance Terminated",
	TerminationBeforeInit:       "Termination Before Initialization",
	TerminationAfterTermination: "Termination After Termination",
	RetrieveBeforeInit:          "Retrieve Data Before Initialization",
	RetrieveAfterTermination:    "Retrieve Data After Termination",
	StoreBeforeInit:             "Store Data Before Initialization",
	StoreAfterTermination:       "Store Data After Termination",
	CommitBeforeInit:            "Commit Before Initialization",
	CommitAfterTermination:      "Commit After Termination",
	GeneralArgumentError:        "General Argument Error",
	GeneralGetFailure:           "General Get Failure",
	GeneralSetFailure:           "General Set Failure",
	GeneralCommitFailure:        "General Commit Failure",
	UndefinedElement:            "Undefined Data Model Element",
	ValueNotInitialized:         "Data Model Element Value Not Initialized",
	ElementReadOnly:             "Data Model Element Is Read Only",
	ElementWriteOnly:            "Data Model Element Is Write Only",
	TypeMismatch:                "Data Model Element Type Mismatch",
	ValueOutOfRange:             "Data Model Element Value Out Of Range",
	DependencyNotEstablished:    "Data Model Dependency Not Established",
}

func (c ErrorCode) String() string { return strconv.Itoa(int(c)) }

// Message is the standard short description, "" for unknown codes.
func (c ErrorCode) Message() string { return errorStrings[c] }

// GetErrorString implements the RTE call of the same name.
func GetErrorString(code string) string {
	n, err := strconv.Atoi(code)
	if err != nil {
		return ""
	}
	return ErrorCode(n).Message()
}

var (
	ErrSessionNotFound = errors.New("rte: session not found or expired")
	ErrSessionExists   = errors.New("rte: session id already in use")
)
