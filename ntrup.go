// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package main

import (
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/user"
	"path/filepath"

	"github.com/jrick/ntrup/internal/wipe"
	"github.com/jrick/ntrup/kem"
	"github.com/jrick/ntrup/keyfile"
	"github.com/jrick/ntrup/stream"
	"golang.org/x/term"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage of %s:
  %[1]s keygen [-i id] [-k kem] [-t time] [-m memory (KiB)] [-c comment]
  %[1]s passwd [-i id] [-t time] [-m memory (KiB)]
  %[1]s encrypt [-i id] [-p] [-in input] [-out output]
  %[1]s decrypt [-i id] [-in input] [-out output]
  %[1]s kems
`, filepath.Base(os.Args[0]))
	os.Exit(2)
}

func init() {
	flag.Usage = usage
	log.SetFlags(0)
	log.SetPrefix(filepath.Base(os.Args[0]) + ": ")
}

func main() {
	flag.Parse()          // for -h usage
	if len(os.Args) < 2 { // one command is required
		usage()
	}
	var err error
	switch os.Args[1] {
	case "keygen":
		fs := new(keygenFlags).parse(os.Args[2:])
		err = keygen(fs)
	case "passwd":
		fs := new(passwdFlags).parse(os.Args[2:])
		err = passwd(fs)
	case "encrypt":
		fs := new(encryptFlags).parse(os.Args[2:])
		err = encrypt(fs)
	case "decrypt":
		fs := new(decryptFlags).parse(os.Args[2:])
		err = decrypt(fs)
	case "kems":
		for _, name := range kem.Names() {
			fmt.Println(name)
		}
	default:
		fmt.Fprintf(os.Stderr, "no command %q\n", os.Args[1])
		usage()
	}
	if err != nil {
		log.Fatal(err)
	}
}

const (
	defaultID     = "id"
	defaultKEM    = "x25519-ntrup547"
	defaultTime   = 1
	defaultMemory = 64 * 1024
)

type kdfFlags struct {
	time   uint
	memory uint
	force  bool
}

func (f *kdfFlags) register(fs *flag.FlagSet) {
	fs.UintVar(&f.time, "t", defaultTime, "Argon2id time")
	fs.UintVar(&f.memory, "m", defaultMemory, "Argon2id memory (KiB)")
	fs.BoolVar(&f.force, "f", false, "force Argon2id key derivation despite low parameters")
}

func (f *kdfFlags) params() (*keyfile.Argon2idParams, error) {
	if f.memory < defaultMemory {
		log.Printf("warning: recommended Argon2id memory parameter is %d KiB (%d MiB)",
			defaultMemory, defaultMemory/1024)
		if !f.force {
			return nil, errors.New("choose stronger parameters, use defaults, or force with -f")
		}
	}
	return keyfile.NewArgon2idParams(uint32(f.time), uint32(f.memory)), nil
}

type keygenFlags struct {
	identity string
	kem      string
	comment  string
	kdf      kdfFlags
}

func (f *keygenFlags) parse(args []string) *keygenFlags {
	fs := flag.NewFlagSet("ntrup keygen", flag.ExitOnError)
	fs.StringVar(&f.identity, "i", defaultID, "identity name")
	fs.StringVar(&f.kem, "k", defaultKEM, "key encapsulation mechanism (see 'ntrup kems')")
	fs.StringVar(&f.comment, "c", "", "comment")
	f.kdf.register(fs)
	fs.Parse(args)
	return f
}

func promptPassphrase(prompt string) ([]byte, error) {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	defer tty.Close()
	_, err = fmt.Fprint(tty, prompt)
	if err != nil {
		return nil, err
	}
	passphrase, err := term.ReadPassword(int(tty.Fd()))
	fmt.Fprintln(tty)
	return passphrase, err
}

func promptNewPassphrase(prompt string) ([]byte, error) {
	passphrase, err := promptPassphrase(prompt)
	if err != nil {
		return nil, err
	}
	if len(passphrase) == 0 {
		return nil, errors.New("empty passphrase")
	}
	again, err := promptPassphrase("Confirm passphrase: ")
	if err != nil {
		return nil, err
	}
	defer wipe.Slice(again)
	if string(again) != string(passphrase) {
		wipe.Slice(passphrase)
		return nil, errors.New("passphrases do not match")
	}
	return passphrase, nil
}

func appdir() string {
	u, err := user.Current()
	if err != nil {
		log.Printf("appdir: %v", err)
		return ""
	}
	if u.HomeDir == "" {
		log.Printf("appdir: user homedir is unknown")
		return ""
	}
	dir := filepath.Join(u.HomeDir, ".ntrup")
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		err = os.MkdirAll(dir, 0700)
		if err != nil {
			log.Fatal(err)
		}
	}
	return dir
}

// restrict limits filesystem access to the application directory, the
// terminal, and the named files.
func restrict(appdir string, files ...string) error {
	err := unveil(appdir, "rwc")
	if err != nil {
		return err
	}
	err = unveil("/dev/tty", "rw")
	if err != nil {
		return err
	}
	for _, f := range files {
		if f == "" || f == "-" {
			continue
		}
		err = unveil(f, "rwc")
		if err != nil {
			return err
		}
	}
	return unveilBlock()
}

func keygen(fs *keygenFlags) (err error) {
	k, err := kem.Open(fs.kem)
	if err != nil {
		return err
	}
	kdfp, err := fs.kdf.params()
	if err != nil {
		return err
	}

	id := fs.identity
	appdir := appdir()
	err = restrict(appdir)
	if err != nil {
		return err
	}
	pkFilename := filepath.Join(appdir, id+".public")
	skFilename := filepath.Join(appdir, id+".secret")
	if _, err := os.Stat(pkFilename); !os.IsNotExist(err) {
		return fmt.Errorf("%q keys already exist in %s", id, appdir)
	}
	if _, err := os.Stat(skFilename); !os.IsNotExist(err) {
		return fmt.Errorf("%q keys already exist in %s", id, appdir)
	}

	passphrase, err := promptNewPassphrase("Secret key passphrase: ")
	if err != nil {
		return err
	}
	defer wipe.Slice(passphrase)

	defer func() {
		r := recover()
		if r != nil || err != nil {
			os.Remove(pkFilename)
			os.Remove(skFilename)
		}
		if r != nil {
			panic(r)
		}
	}()

	pkFile, err := os.OpenFile(pkFilename, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer pkFile.Close()
	skFile, err := os.OpenFile(skFilename, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer skFile.Close()

	fp, err := keyfile.GenerateKeys(rand.Reader, k, pkFile, skFile, passphrase, kdfp, fs.comment)
	if err != nil {
		return err
	}
	log.Printf("create %v", pkFilename)
	log.Printf("create %v", skFilename)
	log.Printf("cryptosystem: %v", k)
	log.Printf("fingerprint: %s", fp)
	return nil
}

type passwdFlags struct {
	identity string
	kdf      kdfFlags
}

func (f *passwdFlags) parse(args []string) *passwdFlags {
	fs := flag.NewFlagSet("ntrup passwd", flag.ExitOnError)
	fs.StringVar(&f.identity, "i", defaultID, "identity name")
	f.kdf.register(fs)
	fs.Parse(args)
	return f
}

func passwd(fs *passwdFlags) error {
	kdfp, err := fs.kdf.params()
	if err != nil {
		return err
	}
	appdir := appdir()
	err = restrict(appdir)
	if err != nil {
		return err
	}
	skFilename := filepath.Join(appdir, fs.identity+".secret")
	k, seed, kf, err := openSecretKey(skFilename)
	if err != nil {
		return err
	}
	defer wipe.Slice(seed)

	passphrase, err := promptNewPassphrase("New secret key passphrase: ")
	if err != nil {
		return err
	}
	defer wipe.Slice(passphrase)

	tmpFilename := skFilename + ".new"
	tmp, err := os.OpenFile(tmpFilename, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return err
	}
	err = keyfile.EncryptSecretKey(rand.Reader, tmp, k, seed, passphrase, kdfp, kf)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpFilename)
		return err
	}
	err = os.Rename(tmpFilename, skFilename)
	if err != nil {
		return err
	}
	log.Printf("reencrypt %v", skFilename)
	return nil
}

func openSecretKey(skFilename string) (kem.KEM, []byte, keyfile.Keyfields, error) {
	skFile, err := os.Open(skFilename)
	if err != nil {
		return nil, nil, keyfile.Keyfields{}, err
	}
	defer skFile.Close()
	passphrase, err := promptPassphrase("Secret key passphrase: ")
	if err != nil {
		return nil, nil, keyfile.Keyfields{}, err
	}
	defer wipe.Slice(passphrase)
	k, seed, kf, err := keyfile.OpenSecretKey(skFile, passphrase)
	if err != nil {
		log.Printf("%s: %v", skFilename, err)
		return nil, nil, kf, errors.New("the secret keyfile cannot be opened; " +
			"this may be due to keyfile tampering or an incorrect passphrase")
	}
	return k, seed, kf, nil
}

type encryptFlags struct {
	id         string
	passphrase bool
	in         string
	out        string
	kdf        kdfFlags
}

func (f *encryptFlags) parse(args []string) *encryptFlags {
	fs := flag.NewFlagSet("ntrup encrypt", flag.ExitOnError)
	fs.StringVar(&f.id, "i", defaultID, "identity")
	fs.BoolVar(&f.passphrase, "p", false, "encrypt with a passphrase instead of a public key")
	fs.StringVar(&f.in, "in", "", "input file")
	fs.StringVar(&f.out, "out", "", "output file")
	f.kdf.register(fs)
	fs.Parse(args)
	return f
}

func stdio(outFlag, inFlag string) (io.WriteCloser, io.ReadCloser, error) {
	out := os.Stdout
	in := os.Stdin
	var err error
	if inFlag != "" && inFlag != "-" {
		in, err = os.Open(inFlag)
		if err != nil {
			return nil, nil, err
		}
	}
	if outFlag != "" && outFlag != "-" {
		out, err = os.Create(outFlag)
		if err != nil {
			in.Close()
			return nil, nil, err
		}
	}
	return out, in, nil
}

func encrypt(fs *encryptFlags) error {
	appdir := appdir()
	err := restrict(appdir, fs.in, fs.out)
	if err != nil {
		return err
	}

	var header, key []byte
	if fs.passphrase {
		kdfp, err := fs.kdf.params()
		if err != nil {
			return err
		}
		passphrase, err := promptNewPassphrase("Encryption passphrase: ")
		if err != nil {
			return err
		}
		header, key, err = stream.PassphraseHeader(rand.Reader, passphrase, kdfp.Time, kdfp.Memory)
		wipe.Slice(passphrase)
		if err != nil {
			return err
		}
	} else {
		// Read identity's public key
		pkFilename := filepath.Join(appdir, fs.id+".public")
		if _, err := os.Stat(pkFilename); os.IsNotExist(err) {
			log.Printf("%s does not exist", pkFilename)
			return errors.New("use '-i' flag to choose another identity or generate default keys with 'ntrup keygen'")
		}
		pkFile, err := os.Open(pkFilename)
		if err != nil {
			return err
		}
		k, pk, err := keyfile.ReadPublicKey(pkFile)
		pkFile.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", pkFilename, err)
		}
		header, key, err = stream.Encapsulate(k, pk)
		if err != nil {
			return err
		}
	}
	defer wipe.Slice(key)

	out, in, err := stdio(fs.out, fs.in)
	if err != nil {
		return err
	}
	defer in.Close()
	err = stream.Encrypt(out, in, header, key)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}

type decryptFlags struct {
	id  string
	in  string
	out string
}

func (f *decryptFlags) parse(args []string) *decryptFlags {
	fs := flag.NewFlagSet("ntrup decrypt", flag.ExitOnError)
	fs.StringVar(&f.id, "i", defaultID, "identity")
	fs.StringVar(&f.in, "in", "", "input file")
	fs.StringVar(&f.out, "out", "", "output file")
	fs.Parse(args)
	return f
}

func decrypt(fs *decryptFlags) error {
	appdir := appdir()
	err := restrict(appdir, fs.in, fs.out)
	if err != nil {
		return err
	}

	out, in, err := stdio(fs.out, fs.in)
	if err != nil {
		return err
	}
	defer in.Close()
	defer out.Close()

	h, err := stream.ReadHeader(in)
	if err != nil {
		return err
	}

	var key []byte
	switch h.Scheme {
	case stream.Argon2idScheme:
		passphrase, err := promptPassphrase("Decryption passphrase: ")
		if err != nil {
			return err
		}
		key, err = stream.PassphraseKey(h, passphrase)
		wipe.Slice(passphrase)
		if err != nil {
			return err
		}
	default:
		skFilename := filepath.Join(appdir, fs.id+".secret")
		k, seed, _, err := openSecretKey(skFilename)
		if err != nil {
			return err
		}
		defer wipe.Slice(seed)
		if k != h.KEM {
			return fmt.Errorf("message is encrypted with %v, but %s is a %v key",
				h.KEM, skFilename, k)
		}
		key, err = stream.Decapsulate(h, seed)
		if err != nil {
			return err
		}
	}
	defer wipe.Slice(key)

	return stream.Decrypt(out, in, h.Bytes, key)
}
