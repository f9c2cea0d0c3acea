package emulator

import (
	"crypto/ecdsa"
	"crypto/sha512"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/pbkdf2"
)

// ErrInvalidMnemonic is returned for mnemonics failing the BIP39 checksum.
var ErrInvalidMnemonic = errors.New("invalid BIP39 mnemonic")

// keyring holds the BIP39 seed of the emulated device.
type keyring struct {
	mu   sync.RWMutex
	seed []byte
}

func newKeyring(mnemonic string, passphrase string) (*keyring, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	// BIP39: seed = PBKDF2(mnemonic, "mnemonic" + passphrase, 2048, 64, SHA512)
	const (
		pbkdf2Iterations = 2048
		pbkdf2KeyLength  = 64
	)

	seed := pbkdf2.Key(
		[]byte(mnemonic),
		[]byte("mnemonic"+passphrase),
		pbkdf2Iterations,
		pbkdf2KeyLength,
		sha512.New,
	)

	return &keyring{seed: seed}, nil
}

// derive returns the private key and chain code at path.
func (k *keyring) derive(path []uint32) (*ecdsa.PrivateKey, []byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.seed == nil {
		return nil, nil, errors.New("keyring has been wiped")
	}

	key, err := bip32.NewMasterKey(k.seed)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create master key")
	}

	for _, index := range path {
		key, err = key.NewChildKey(index)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "failed to derive child key at index %d", index)
		}
	}

	privateKey, err := crypto.ToECDSA(key.Key)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to convert to ECDSA private key")
	}

	return privateKey, key.ChainCode, nil
}

// wipe zeroes the seed, later derivations fail.
func (k *keyring) wipe() {
	k.mu.Lock()
	defer k.mu.Unlock()

	for i := range k.seed {
		k.seed[i] = 0
	}
	k.seed = nil
}
