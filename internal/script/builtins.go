package script

import "strings"

// loremSource feeds the lorem builtin. Words cycle when more are
// requested than the source holds.
const loremSource = `lorem ipsum dolor sit amet consectetur adipiscing elit sed do
eiusmod tempor incididunt ut labore et dolore magna aliqua enim ad minim
veniam quis nostrud exercitation ullamco laboris nisi aliquip ex ea commodo
consequat duis aute irure in reprehenderit voluptate velit esse cillum fugiat
nulla pariatur excepteur sint occaecat cupidatat non proident sunt culpa qui
officia deserunt mollit anim id est laborum`

var loremWords = strings.Fields(loremSource)

var builtins = map[string]any{
	"lorem": lorem,
	"range": intRange,
}

// lorem returns count placeholder words.
func lorem(count int) []string {
	if count < 0 {
		count = -count
	}
	out := make([]string, count)
	for i := 0; i < count; i++ {
		out[i] = loremWords[i%len(loremWords)]
	}
	return out
}

// intRange returns the integers from start to end inclusive.
func intRange(start, end int) []int {
	if end < start {
		return nil
	}
	out := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, i)
	}
	return out
}
