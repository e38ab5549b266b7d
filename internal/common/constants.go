package common

const (
	// DEFAULT_REMOTE_FILE is the remote file name used when the config
	// file doesn't name one.
	DEFAULT_REMOTE_FILE = "cloudfiles.dat"
)

const (
	DROPBOX_APP_KEY = "l4v6ipcr1rlwu1x"
)

const (
	GDRIVE_CLIENT_ID = "731677456506-pm15gpb5d2c71ielkf2bkcu2d638tj12.apps.googleusercontent.com"
	GDRIVE_API_KEY   = "RfpLjMKVJX6rI_OW5DVmJTlT"
)
