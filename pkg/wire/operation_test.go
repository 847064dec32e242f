package wire

import "testing"

func TestOperationString(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpHello, "Hello"},
		{OpGetFileInfo, "GetFileInfo"},
		{OpDeleteFile, "DeleteFile"},
		{OpDownloadFile, "DownloadFile"},
		{OpUploadFile, "UploadFile"},
		{Operation(99), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Operation(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestOperationIsStreaming(t *testing.T) {
	streaming := map[Operation]bool{
		OpHello:        false,
		OpGetFileInfo:  false,
		OpDeleteFile:   false,
		OpDownloadFile: true,
		OpUploadFile:   true,
	}
	for op, want := range streaming {
		if got := op.IsStreaming(); got != want {
			t.Errorf("%s.IsStreaming() = %v, want %v", op, got, want)
		}
	}
}

func TestStepIsValid(t *testing.T) {
	if StepNone.IsValid() {
		t.Error("StepNone should not be a valid streaming step")
	}
	for _, s := range []Step{StepInitialize, StepReceiveData, StepSendData, StepFinalize} {
		if !s.IsValid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if Step(5).IsValid() {
		t.Error("Step(5) should be invalid")
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		s    Status
		want string
	}{
		{StatusOK, "OK"},
		{StatusInvalidArgument, "INVALID_ARGUMENT"},
		{StatusFailedPrecondition, "FAILED_PRECONDITION"},
		{StatusNotFound, "NOT_FOUND"},
		{StatusDataLoss, "DATA_LOSS"},
		{StatusInternal, "INTERNAL"},
		{StatusUnknown, "UNKNOWN"},
		{StatusUnimplemented, "UNIMPLEMENTED"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}
