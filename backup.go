package e3kit

import (
	"context"
	"errors"

	"github.com/vaultsandbox/e3kit-go/internal/crypto"
)

// backupName returns the cloud entry name holding identity's key backup.
func backupName(identity string) string {
	return identity + "_keyknox"
}

// BackupPrivateKey stores the local private key in the cloud, encrypted to
// a key pair derived from password. There is at most one backup per
// identity; a second call fails with *BackupKeyError.
func (e *EThree) BackupPrivateKey(ctx context.Context, password string) error {
	const op = "backup private key"

	unlock, err := e.lockIdentity(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	kp, err := e.requireBootstrapped()
	if err != nil {
		return err
	}
	defer crypto.Wipe(kp.PrivateKey)

	if password == "" {
		return emptyPassword("password")
	}

	ctx, err = e.authorize(ctx, op)
	if err != nil {
		return err
	}
	sync, err := e.openSync(ctx, password, op)
	if err != nil {
		return err
	}
	defer sync.wipe()

	name := backupName(e.identity)
	exists, err := sync.Exists(ctx, name)
	if err != nil {
		return e.backupError(op, err)
	}
	if exists {
		return &BackupKeyError{Identity: e.identity}
	}

	if err := sync.Store(ctx, name, kp.PrivateKey); err != nil {
		if errors.Is(err, ErrCloudConflict) {
			return &BackupKeyError{Identity: e.identity}
		}
		return e.backupError(op, err)
	}
	e.log.Info("private key backed up")
	return nil
}

// RestorePrivateKey downloads the backup, decrypts it with password and
// stores the key locally, leaving the manager bootstrapped.
func (e *EThree) RestorePrivateKey(ctx context.Context, password string) error {
	const op = "restore private key"

	unlock, err := e.lockIdentity(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := e.requireNoLocalKey(); err != nil {
		return err
	}
	if password == "" {
		return emptyPassword("password")
	}

	ctx, err = e.authorize(ctx, op)
	if err != nil {
		return err
	}
	sync, err := e.openSync(ctx, password, op)
	if err != nil {
		return err
	}
	defer sync.wipe()

	key, _, err := sync.Retrieve(ctx, backupName(e.identity))
	if err != nil {
		return e.backupError(op, err)
	}
	defer crypto.Wipe(key)

	if _, err := e.crypto.PublicKey(key); err != nil {
		return collaboratorError(CollaboratorCrypto, "restored key", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.keys.Store(e.identity, key); err != nil {
		return collaboratorError(CollaboratorKeyStorage, "store key", err)
	}
	e.log.Info("private key restored")
	return nil
}

// ChangePassword re-encrypts the backup under newPassword. The old password
// stops working. The replacement is a compare-and-swap on the entry
// version, so a concurrent change makes this call fail instead of losing
// either write.
func (e *EThree) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	const op = "change password"

	unlock, err := e.lockIdentity(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	kp, err := e.requireBootstrapped()
	if err != nil {
		return err
	}
	crypto.Wipe(kp.PrivateKey)

	switch {
	case oldPassword == "":
		return emptyPassword("old password")
	case newPassword == "":
		return emptyPassword("new password")
	case oldPassword == newPassword:
		return &ConfigurationError{Field: "new password", Message: "must differ from the old password"}
	}

	ctx, err = e.authorize(ctx, op)
	if err != nil {
		return err
	}
	oldSync, err := e.openSync(ctx, oldPassword, op)
	if err != nil {
		return err
	}
	defer oldSync.wipe()

	name := backupName(e.identity)
	key, version, err := oldSync.Retrieve(ctx, name)
	if err != nil {
		return e.backupError(op, err)
	}
	defer crypto.Wipe(key)

	newSync, err := e.openSync(ctx, newPassword, op)
	if err != nil {
		return err
	}
	defer newSync.wipe()

	if err := newSync.Replace(ctx, name, key, version); err != nil {
		return e.backupError(op, err)
	}
	e.log.Info("backup password changed")
	return nil
}

// ResetPrivateKeyBackup deletes the backup after checking password.
func (e *EThree) ResetPrivateKeyBackup(ctx context.Context, password string) error {
	const op = "reset private key backup"

	unlock, err := e.lockIdentity(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	kp, err := e.requireBootstrapped()
	if err != nil {
		return err
	}
	crypto.Wipe(kp.PrivateKey)

	if password == "" {
		return emptyPassword("password")
	}

	ctx, err = e.authorize(ctx, op)
	if err != nil {
		return err
	}
	sync, err := e.openSync(ctx, password, op)
	if err != nil {
		return err
	}
	defer sync.wipe()

	name := backupName(e.identity)
	key, version, err := sync.Retrieve(ctx, name)
	if err != nil {
		return e.backupError(op, err)
	}
	crypto.Wipe(key)

	if err := sync.Delete(ctx, name, version); err != nil {
		return e.backupError(op, err)
	}
	e.log.Info("private key backup reset")
	return nil
}

// openSync derives the recovery credential for password.
func (e *EThree) openSync(ctx context.Context, password, op string) (*cloudSync, error) {
	cred, err := e.crypto.DeriveKeyPair(ctx, password, e.identity)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, collaboratorError(CollaboratorCrypto, op, err)
	}
	return &cloudSync{
		store:    e.cloud,
		crypto:   e.crypto,
		identity: e.identity,
		cred:     cred,
	}, nil
}

// backupError maps a cloudSync failure to the public error.
func (e *EThree) backupError(op string, err error) error {
	var collab *CollaboratorError
	switch {
	case errors.Is(err, errAuthFailed):
		return &WrongPasswordError{Identity: e.identity}
	case errors.Is(err, ErrCloudEntryNotFound):
		return &PrivateKeyNotFoundError{Identity: e.identity}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.As(err, &collab):
		return err
	}
	return collaboratorError(CollaboratorCloud, op, err)
}

func emptyPassword(field string) error {
	return &ConfigurationError{Field: field, Message: "must not be empty"}
}
