package terminal

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		echo string
		want string
	}{
		{
			name: "colored ls with echo and prompt",
			raw:  "ls --color\r\n\x1b[0m\x1b[01;34mbin\x1b[0m  \x1b[01;34metc\x1b[0m\r\nnotes.txt\r\nadmin@nas:~$ ",
			echo: "ls --color",
			want: "bin  etc\nnotes.txt",
		},
		{
			name: "echo with prompt prefix",
			raw:  "admin@nas:~$ uptime\r\n 12:01:02 up 3 days,  1:02,  1 user\r\nadmin@nas:~$ ",
			echo: "uptime",
			want: " 12:01:02 up 3 days,  1:02,  1 user",
		},
		{
			name: "no echo because echo was disabled",
			raw:  "/home/admin\r\n",
			echo: "pwd",
			want: "/home/admin",
		},
		{
			name: "blank lines and bell",
			raw:  "\r\n\x07first\r\n\r\n   \r\nsecond\r\n",
			echo: "",
			want: "first\nsecond",
		},
		{
			name: "window title OSC",
			raw:  "\x1b]0;admin@nas: ~\x07hostname\r\nnas\r\n",
			echo: "hostname",
			want: "nas",
		},
		{
			name: "root prompt dropped",
			raw:  "whoami\r\nroot\r\nroot@nas:/# ",
			echo: "whoami",
			want: "root",
		},
		{
			name: "long line ending in dollar is output",
			raw:  "echo $PRICE\r\nthe price of the flagship model listed on the vendor site today is 400$\r\n",
			echo: "echo $PRICE",
			want: "the price of the flagship model listed on the vendor site today is 400$",
		},
		{
			name: "output containing the command is kept",
			raw:  "uid=1000(admin) gid=1000(admin) groups=1000(admin),27(sudo)\r\n",
			echo: "id",
			want: "uid=1000(admin) gid=1000(admin) groups=1000(admin),27(sudo)",
		},
		{
			name: "file names containing the command are kept",
			raw:  "tools\r\ncalls.log\r\nmain.go\r\n",
			echo: "ls",
			want: "tools\ncalls.log\nmain.go",
		},
		{
			name: "echo repeated only at the top",
			raw:  "ls\r\nadmin@nas:~$ ls\r\nls\r\ntools\r\n",
			echo: "ls",
			want: "tools",
		},
		{
			name: "later echo-like line is output",
			raw:  "tools\r\nls\r\n",
			echo: "ls",
			want: "tools\nls",
		},
		{
			name: "silent command",
			raw:  "",
			echo: "cd /tmp",
			want: "",
		},
		{
			name: "only prompts",
			raw:  "$ \r\n> \r\n",
			echo: "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize([]byte(tt.raw), tt.echo)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Normalize([]byte(got), tt.echo), "not idempotent")
		})
	}
}

func TestNormalizeIdempotentOnNoise(t *testing.T) {
	alphabet := []string{
		"a", "b", "ls", " ", "\t", "\r", "\n", "\n", "\x07", "\x1b", "[", "0m", "\x1b[31m",
		"\x1b]0;t\x07", "$", "#", ">", "%", "admin@nas:~$ ", "\x00", "\xff", "é",
	}
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		var raw []byte
		for j := rng.Intn(40); j > 0; j-- {
			raw = append(raw, alphabet[rng.Intn(len(alphabet))]...)
		}
		echo := []string{"", "ls", "a b"}[i%3]

		once := Normalize(raw, echo)
		twice := Normalize([]byte(once), echo)
		if once != twice {
			t.Fatalf("not idempotent for %q (echo %q):\n once: %q\ntwice: %q", raw, echo, once, twice)
		}
	}
}

func TestNormalizeLeavesNoControlBytes(t *testing.T) {
	out := Normalize([]byte("\x1b\x1b[0m[0mtext\x1b"), "")
	assert.Equal(t, "[0mtext", out)
	assert.NotContains(t, out, "\x1b")
}
