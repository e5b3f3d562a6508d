package text

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/apperr"
)

func TestExtract_Plain(t *testing.T) {
	out, err := Extract("notes.txt", strings.NewReader("\n  The sky is blue.\n\nGrass is green.  \n"))
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue.\n\nGrass is green.", out)

	out, err = Extract("README.MD", strings.NewReader("# Title"))
	require.NoError(t, err)
	assert.Equal(t, "# Title", out)
}

func TestExtract_Unsupported(t *testing.T) {
	_, err := Extract("slides.pptx", strings.NewReader("x"))
	require.Error(t, err)
	assert.Equal(t, apperr.CodeIngestFormatUnsupported, apperr.CodeOf(err))

	_, err = Extract("noext", strings.NewReader("x"))
	assert.Equal(t, apperr.CodeIngestFormatUnsupported, apperr.CodeOf(err))
}

func TestExtract_Failures(t *testing.T) {
	_, err := Extract("broken.pdf", strings.NewReader("this is not a pdf"))
	require.Error(t, err)
	assert.Equal(t, apperr.CodeIngestExtractFailure, apperr.CodeOf(err))

	_, err = Extract("binary.txt", strings.NewReader("\xff\xfe\x00"))
	require.Error(t, err)
	assert.Equal(t, apperr.CodeIngestExtractFailure, apperr.CodeOf(err))
}

func TestExtract_EmptyIsNotAnError(t *testing.T) {
	out, err := Extract("empty.txt", strings.NewReader("   \n"))
	require.NoError(t, err)
	assert.Empty(t, out)
}
