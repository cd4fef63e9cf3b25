package lineage

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

const (
	maskingSeedLengthConstant           = 32
	maskingPlaceholderTemplateConstant  = "lineage-repo-%s"
	maskingPlaceholderHexLengthConstant = 10
	maskingSeedGenerationErrorTemplate  = "unable to generate masking seed: %w"
)

// Masker redacts non-public repository identifiers from emitted text.
//
// Placeholders derive from an HMAC of a per-run random seed, so the same
// repository always maps to the same placeholder within a run while the
// mapping cannot be reversed across runs. Masking is applied only at the
// output boundary; decision logic always sees real identifiers.
type Masker struct {
	enabled      bool
	seed         []byte
	placeholders map[string]string
}

// NewMasker constructs a Masker with a fresh random seed.
func NewMasker(enabled bool) (*Masker, error) {
	seed := make([]byte, maskingSeedLengthConstant)
	if _, seedError := rand.Read(seed); seedError != nil {
		return nil, fmt.Errorf(maskingSeedGenerationErrorTemplate, seedError)
	}
	return &Masker{enabled: enabled, seed: seed, placeholders: map[string]string{}}, nil
}

// RegisterRepository records a non-public repository whose identifiers must be
// redacted. Both the owner/name form and the bare name map to one placeholder.
func (masker *Masker) RegisterRepository(descriptor RepositoryDescriptor) {
	if !masker.enabled || descriptor.IsPublic() {
		return
	}

	placeholder := masker.placeholderFor(descriptor.FullName)
	masker.placeholders[descriptor.FullName] = placeholder
	if len(descriptor.Name) > 0 {
		masker.placeholders[descriptor.Name] = placeholder
	}
}

// Mask replaces every registered identifier occurrence in the text.
func (masker *Masker) Mask(text string) string {
	if !masker.enabled || len(masker.placeholders) == 0 {
		return text
	}

	identifiers := make([]string, 0, len(masker.placeholders))
	for identifier := range masker.placeholders {
		identifiers = append(identifiers, identifier)
	}
	sort.Slice(identifiers, func(firstIndex, secondIndex int) bool {
		return len(identifiers[firstIndex]) > len(identifiers[secondIndex])
	})

	maskedText := text
	for _, identifier := range identifiers {
		maskedText = strings.ReplaceAll(maskedText, identifier, masker.placeholders[identifier])
	}
	return maskedText
}

// DisplayName returns the identifier safe for logs and reports.
func (masker *Masker) DisplayName(identifier string) string {
	if !masker.enabled {
		return identifier
	}
	if placeholder, registered := masker.placeholders[identifier]; registered {
		return placeholder
	}
	return identifier
}

func (masker *Masker) placeholderFor(identifier string) string {
	digest := hmac.New(sha256.New, masker.seed)
	digest.Write([]byte(identifier))
	return fmt.Sprintf(maskingPlaceholderTemplateConstant, hex.EncodeToString(digest.Sum(nil))[:maskingPlaceholderHexLengthConstant])
}
