package wordle

import (
	"fmt"
	"regexp"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// MENTION POLICY
// ══════════════════════════════════════════════════════════════════════════════

// MentionPolicy определяет, как считать повторные упоминания игрока
// внутри одного сегмента.
type MentionPolicy string

const (
	// MentionCountAll - каждое упоминание засчитывается как отдельная партия.
	MentionCountAll MentionPolicy = "count_all"

	// MentionDedupeSegment - повторы внутри сегмента отбрасываются.
	MentionDedupeSegment MentionPolicy = "dedupe_segment"
)

// IsValid проверяет значение политики.
func (p MentionPolicy) IsValid() bool {
	return p == MentionCountAll || p == MentionDedupeSegment
}

// ══════════════════════════════════════════════════════════════════════════════
// PARSED RESULT
// ══════════════════════════════════════════════════════════════════════════════

// ParsedResult - один токен счёта и игроки, получившие его, в порядке текста.
// Список игроков может быть пустым.
type ParsedResult struct {
	Token      ScoreToken
	PlayerRefs []string
}

// ══════════════════════════════════════════════════════════════════════════════
// PARSER
// ══════════════════════════════════════════════════════════════════════════════

var mentionPattern = regexp.MustCompile(`<@!?(\d+)>`)

// ParserConfig - настройки парсера.
type ParserConfig struct {
	Denominator   int
	FailureMarker string
	MentionPolicy MentionPolicy
}

// DefaultParserConfig возвращает настройки для классического Wordle (N=6).
func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		Denominator:   DefaultDenominator,
		FailureMarker: DefaultFailureMarker,
		MentionPolicy: MentionCountAll,
	}
}

// Parser извлекает пары (токен, игроки) из текста сообщения.
// Parser не имеет изменяемого состояния и безопасен для конкурентного использования.
type Parser struct {
	cfg     ParserConfig
	tokenRe *regexp.Regexp
}

// NewParser создаёт парсер.
func NewParser(cfg ParserConfig) (*Parser, error) {
	if cfg.Denominator < 1 || cfg.Denominator > 9 {
		return nil, fmt.Errorf("denominator must be 1..9, got %d", cfg.Denominator)
	}
	if cfg.FailureMarker == "" {
		return nil, fmt.Errorf("failure marker is required")
	}
	if cfg.MentionPolicy == "" {
		cfg.MentionPolicy = MentionCountAll
	}
	if !cfg.MentionPolicy.IsValid() {
		return nil, fmt.Errorf("unknown mention policy %q", cfg.MentionPolicy)
	}

	// Любая одиночная цифра считается границей сегмента, даже вне 1..N:
	// такие токены отбрасываются в Parse, но упоминания после них
	// не "протекают" в предыдущий сегмент.
	pattern := fmt.Sprintf(`(?i)(\d|%s)/%d:`, regexp.QuoteMeta(cfg.FailureMarker), cfg.Denominator)

	return &Parser{
		cfg:     cfg,
		tokenRe: regexp.MustCompile(pattern),
	}, nil
}

// Denominator возвращает N.
func (p *Parser) Denominator() int {
	return p.cfg.Denominator
}

// Normalize убирает жирное выделение ("**") и крайние пробелы.
func Normalize(body string) string {
	return strings.TrimSpace(strings.ReplaceAll(body, "**", ""))
}

// Parse разбирает текст сообщения.
// ok == false означает промах парсера: ни одного токена не найдено.
// Сегмент токена продолжается до следующего токена или до конца текста,
// поэтому упоминания никогда не переходят между сегментами.
func (p *Parser) Parse(body string) (results []ParsedResult, ok bool) {
	text := Normalize(body)
	if text == "" {
		return nil, false
	}

	matches := p.tokenRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil, false
	}

	results = make([]ParsedResult, 0, len(matches))
	for i, m := range matches {
		segStart := m[1]
		segEnd := len(text)
		if i+1 < len(matches) {
			segEnd = matches[i+1][0]
		}

		token, err := ParseToken(text[m[2]:m[3]], p.cfg.FailureMarker)
		if err != nil || (!token.Failed && !token.InRange(p.cfg.Denominator)) {
			continue
		}

		results = append(results, ParsedResult{
			Token:      token,
			PlayerRefs: p.extractMentions(text[segStart:segEnd]),
		})
	}

	return results, len(results) > 0
}

// extractMentions возвращает ID игроков в порядке появления.
func (p *Parser) extractMentions(segment string) []string {
	found := mentionPattern.FindAllStringSubmatch(segment, -1)
	refs := make([]string, 0, len(found))

	var seen map[string]struct{}
	if p.cfg.MentionPolicy == MentionDedupeSegment {
		seen = make(map[string]struct{}, len(found))
	}

	for _, f := range found {
		id := f[1]
		if seen != nil {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
		}
		refs = append(refs, id)
	}
	return refs
}
