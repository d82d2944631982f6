package helpers

import (
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/globalsign/mgo"
	"github.com/globalsign/mgo/bson"
	"github.com/mediabot/mediabot/cache"
	"github.com/mediabot/mediabot/models"
	"github.com/mediabot/mediabot/router"
	"github.com/pkg/errors"
)

// MDb is the session to one of the two database instances
type MDb struct {
	session  *mgo.Session
	database string
	instance models.Instance
}

const (
	dialTimeout   = 10 * time.Second
	dialRetryTime = time.Minute
)

// ConnectMDB connects to mongodb and returns the session for instance
func ConnectMDB(url string, database string, instance models.Instance) (*MDb, error) {
	log := cache.GetLogger().WithField("module", "mdb").WithField("instance", instance.String())
	log.Info("Connecting to " + redactURL(url))

	mgo.SetDebug(false)

	newUrl := strings.TrimSuffix(url, "?ssl=true")
	newUrl = strings.Replace(newUrl, "ssl=true&", "", -1)

	dialInfo, err := mgo.ParseURL(newUrl)
	if err != nil {
		return nil, errors.Wrap(err, "parsing mongodb url failed")
	}

	// setup TLS if we use SSL
	if newUrl != url {
		tlsConfig := &tls.Config{}
		tlsConfig.InsecureSkipVerify = true

		dialInfo.DialServer = func(addr *mgo.ServerAddr) (net.Conn, error) {
			conn, err := tls.Dial("tcp", addr.String(), tlsConfig)
			return conn, err
		}
	}

	if dialInfo.Timeout == 0 {
		dialInfo.Timeout = dialTimeout
	}

	var session *mgo.Session
	retry := backoff.NewExponentialBackOff()
	retry.MaxElapsedTime = dialRetryTime
	err = backoff.RetryNotify(func() (err error) {
		session, err = mgo.DialWithInfo(dialInfo)
		return err
	}, retry, func(err error, wait time.Duration) {
		log.Warnf("dial failed, retrying in %s: %s", wait, err.Error())
	})
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to %s database failed", instance)
	}

	session.SetMode(mgo.Primary, false)
	session.SetSafe(&mgo.Safe{})

	log.Info("Connected!")

	return &MDb{session: session, database: database, instance: instance}, nil
}

// GetMDb is a simple getter for the mongodb database.
func (m *MDb) GetMDb() *mgo.Database {
	return m.session.DB(m.database)
}

func (m *MDb) C(collection models.MongoDbCollection) *mgo.Collection {
	return m.GetMDb().C(collection.String())
}

// Ping checks that the server answers
func (m *MDb) Ping() error {
	return errors.Wrapf(m.session.Ping(), "pinging %s database failed", m.instance)
}

func (m *MDb) Close() {
	m.session.Close()
}

// Stats runs dbStats and returns the data and index size in bytes
func (m *MDb) Stats() (stats router.Stats, err error) {
	var result bson.M
	err = m.GetMDb().Run(bson.D{{Name: "dbStats", Value: 1}}, &result)
	if err != nil {
		return stats, errors.Wrapf(err, "dbStats on %s database failed", m.instance)
	}

	stats.DataSize = toFloat(result["dataSize"])
	stats.IndexSize = toFloat(result["indexSize"])
	return stats, nil
}

// CollectionNames lists all collections of the database
func (m *MDb) CollectionNames() ([]string, error) {
	return m.GetMDb().CollectionNames()
}

// Returns true if the given error is a not found error from MongoDB
// includes errors from invalid object IDs
func IsMdbNotFound(err error) (notFound bool) {
	if err != nil {
		if err == mgo.ErrNotFound ||
			strings.Contains(err.Error(), "not found") ||
			strings.Contains(err.Error(), "ObjectIDs must be exactly 12 bytes long") {
			return true
		}
	}
	return false
}

// IsMdbDuplicate reports unique index violations
func IsMdbDuplicate(err error) bool {
	return err != nil && mgo.IsDup(errors.Cause(err))
}

// IsMdbNamespaceMissing reports errors caused by dropping a collection that does not exist
func IsMdbNamespaceMissing(err error) bool {
	return err != nil && strings.Contains(err.Error(), "ns not found")
}

// dbStats returns int32, int64 or float64 depending on the server version
func toFloat(value interface{}) float64 {
	switch number := value.(type) {
	case float64:
		return number
	case int64:
		return float64(number)
	case int:
		return float64(number)
	case int32:
		return float64(number)
	}
	return 0
}

func redactURL(url string) string {
	at := strings.LastIndex(url, "@")
	scheme := strings.Index(url, "://")
	if at < 0 || scheme < 0 || scheme > at {
		return url
	}
	return fmt.Sprintf("%s://***@%s", url[:scheme], url[at+1:])
}
