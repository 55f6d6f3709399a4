package crypto

import (
	"golang.org/x/crypto/nacl/box"

	"cipherchat/internal/domain"
	"cipherchat/internal/util/memzero"
)

// SealBox encrypts msg for peer with the pairwise box between myPrivate and
// peer (X25519 + XSalsa20-Poly1305) under a fresh nonce.
func (s *Suite) SealBox(
	msg []byte,
	peer domain.X25519Public,
	myPrivate domain.X25519Private,
) (domain.Sealed, error) {
	if err := checkAgreement(myPrivate, peer); err != nil {
		return domain.Sealed{}, err
	}
	nonce, err := s.randomNonce()
	if err != nil {
		return domain.Sealed{}, err
	}
	pub := [KeyBytes]byte(peer)
	priv := [KeyBytes]byte(myPrivate)
	defer memzero.Zero(priv[:])
	return domain.Sealed{
		Nonce:      nonce,
		Ciphertext: box.Seal(nil, msg, &nonce, &pub, &priv),
	}, nil
}

// OpenBox reverses SealBox. peer is the sender's public key.
func (s *Suite) OpenBox(
	sealed domain.Sealed,
	peer domain.X25519Public,
	myPrivate domain.X25519Private,
) ([]byte, error) {
	if err := checkAgreement(myPrivate, peer); err != nil {
		return nil, err
	}
	pub := [KeyBytes]byte(peer)
	priv := [KeyBytes]byte(myPrivate)
	defer memzero.Zero(priv[:])
	msg, ok := box.Open(nil, sealed.Ciphertext, &sealed.Nonce, &pub, &priv)
	if !ok {
		return nil, domain.ErrAuthentication
	}
	return msg, nil
}

// checkAgreement rejects peers whose DH output would be all zeros; nacl/box
// itself does not.
func checkAgreement(priv domain.X25519Private, pub domain.X25519Public) error {
	out, err := dh(priv, pub)
	memzero.Zero(out[:])
	return err
}
